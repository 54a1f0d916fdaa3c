// Package retention keeps the news store bounded in time.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Фраза, которую оператор должен ввести для полной очистки
const ConfirmClearAll = "DELETE ALL NEWS"

var ErrNotConfirmed = errors.New("clear all is not confirmed")

type ItemStorage interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type Pruner struct {
	items ItemStorage
	now   func() time.Time
}

func NewPruner(items ItemStorage) *Pruner {
	return &Pruner{items: items, now: time.Now}
}

// Prune удаляет статьи старше days дней. days <= 0 значит хранить все
func (p *Pruner) Prune(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	horizon := p.now().AddDate(0, 0, -days)

	deleted, err := p.items.DeleteOlderThan(ctx, horizon)
	if err != nil {
		return 0, fmt.Errorf("prune items older than %d days: %w", days, err)
	}

	slog.Info("pruned old items", "days", days, "deleted", deleted)

	return deleted, nil
}

// ClearAll удаляет все статьи. Без точной фразы подтверждения ничего не делает
func (p *Pruner) ClearAll(ctx context.Context, confirm string) (int64, error) {
	if confirm != ConfirmClearAll {
		return 0, ErrNotConfirmed
	}

	deleted, err := p.items.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear all items: %w", err)
	}

	slog.Warn("all items cleared", "deleted", deleted)

	return deleted, nil
}

// Start чистит базу при запуске и потом раз в interval
func (p *Pruner) Start(ctx context.Context, days int, interval time.Duration) error {
	if _, err := p.Prune(ctx, days); err != nil {
		slog.Error("prune failed", "error", err)
	}

	if days <= 0 || interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Prune(ctx, days); err != nil {
				slog.Error("prune failed", "error", err)
			}
		}
	}
}
