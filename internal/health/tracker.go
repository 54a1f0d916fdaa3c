// Package health records the outcome of the last fetch or test for every source.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

// Длина сообщения об ошибке, которое сохраняется в источник
const maxErrorLength = 200

type HealthStorage interface {
	UpdateHealth(ctx context.Context, sourceID string, health model.Health) error
}

type Tracker struct {
	storage HealthStorage
	now     func() time.Time
}

func NewTracker(storage HealthStorage) *Tracker {
	return &Tracker{storage: storage, now: time.Now}
}

// Record пишет результат опроса источника. Затрагивает только одну запись.
func (t *Tracker) Record(ctx context.Context, sourceID string, fetchErr error) error {
	h := Evaluate(fetchErr, t.now())

	if err := t.storage.UpdateHealth(ctx, sourceID, h); err != nil {
		slog.Error("failed to record source health", "source_id", sourceID, "error", err)
		return fmt.Errorf("record health for %s: %w", sourceID, err)
	}

	return nil
}

// Evaluate считает состояние источника по ошибке последнего опроса
func Evaluate(fetchErr error, now time.Time) model.Health {
	if fetchErr == nil {
		return model.Health{Status: model.HealthOK, LastCheckAt: now}
	}

	return model.Health{
		Status:      model.HealthError,
		LastError:   truncate(fetchErr.Error(), maxErrorLength),
		LastCheckAt: now,
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
