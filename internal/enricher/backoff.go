package enricher

import (
	"context"
	"time"
)

// Sleeper ждет d или отмены контекста. В тестах подменяется, чтобы не ждать по-настоящему
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff считает паузы между повторами одной пачки.
// Пауза растет в factor раз, но никогда не бывает меньше floor.
type backoff struct {
	next        time.Duration
	floor       time.Duration
	factor      float64
	attempts    int
	maxAttempts int
}

func newBackoff(initial, floor time.Duration, factor float64, maxAttempts int) *backoff {
	return &backoff{
		next:        initial,
		floor:       floor,
		factor:      factor,
		maxAttempts: maxAttempts,
	}
}

// Next отмечает неудачную попытку и возвращает паузу перед следующей.
// false значит попытки кончились.
func (b *backoff) Next() (time.Duration, bool) {
	b.attempts++
	if b.attempts >= b.maxAttempts {
		return 0, false
	}

	wait := max(b.next, b.floor)
	b.next = time.Duration(float64(b.next) * b.factor)

	return wait, true
}

func (b *backoff) Attempts() int {
	return b.attempts
}
