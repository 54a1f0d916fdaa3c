package analyzer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Ограничитель запросов к модели, rpm <= 0 отключает ограничение
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
