// Package enricher drains the pending queue through the language model analyzer.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/normalize"
)

var (
	ErrBusy        = errors.New("enrichment already running")
	ErrSessionUsed = errors.New("enrichment session already used")
)

type Analyzer interface {
	Analyze(ctx context.Context, inputs []model.AnalysisInput) ([]model.AnalysisResult, error)
}

type ItemStorage interface {
	Pending(ctx context.Context, limit uint64) ([]model.NewsItem, error)
	ApplyTransition(ctx context.Context, t model.Transition) error
	Count(ctx context.Context, status model.Status) (int, error)
	ReleaseProcessing(ctx context.Context) (int64, error)
}

type Config struct {
	BatchSize int
	// Пауза между пачками
	Cooldown time.Duration
	// Сколько всего попыток на одну пачку при 429
	MaxRetries     int
	InitialBackoff time.Duration
	// Меньше этого между повторами не ждем
	MinBackoff    time.Duration
	BackoffFactor float64
	// Статьи с оценкой ниже пропускаются
	QualityFloor int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      3,
		Cooldown:       4500 * time.Millisecond,
		MaxRetries:     5,
		InitialBackoff: 5 * time.Second,
		MinBackoff:     10 * time.Second,
		BackoffFactor:  1.5,
		QualityFloor:   30,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = d.MinBackoff
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = d.BackoffFactor
	}
	return c
}

type Engine struct {
	items    ItemStorage
	analyzer Analyzer
	cfg      Config
	sleep    Sleeper
	now      func() time.Time

	// Одновременно работает только один прогон
	busy atomic.Bool

	mu     sync.Mutex
	active *Session
}

func New(items ItemStorage, analyzer Analyzer, cfg Config, sleep Sleeper) *Engine {
	if sleep == nil {
		sleep = SleepContext
	}

	return &Engine{
		items:    items,
		analyzer: analyzer,
		cfg:      cfg.withDefaults(),
		sleep:    sleep,
		now:      time.Now,
	}
}

// Recover возвращает в очередь статьи, которые остались в обработке после падения
func (e *Engine) Recover(ctx context.Context) (int64, error) {
	if e.busy.Load() {
		return 0, ErrBusy
	}

	released, err := e.items.ReleaseProcessing(ctx)
	if err != nil {
		return 0, fmt.Errorf("release orphaned items: %w", err)
	}
	if released > 0 {
		slog.Warn("released orphaned items", "count", released)
	}

	return released, nil
}

// Start запускает прогон в отдельной горутине и сразу возвращает его сессию
func (e *Engine) Start(ctx context.Context) (*Session, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	session := NewSession()
	session.claim()
	e.setActive(session)

	go func() {
		if err := e.run(ctx, session); err != nil {
			slog.Error("enrichment stopped", "session", session.ID(), "error", err)
		}
	}()

	return session, nil
}

// Run прогоняет очередь в текущей горутине
func (e *Engine) Run(ctx context.Context, session *Session) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	if !session.claim() {
		e.busy.Store(false)
		return ErrSessionUsed
	}

	e.setActive(session)

	return e.run(ctx, session)
}

// Cancel отменяет активный прогон. false если отменять нечего
func (e *Engine) Cancel() bool {
	session := e.Active()
	if session == nil || !e.busy.Load() {
		return false
	}

	session.Cancel()
	return true
}

// Active возвращает последнюю сессию, в том числе уже завершенную
func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Schedule периодически запускает прогон, пока жив контекст.
// Если прошлый прогон еще идет, тик пропускается.
func (e *Engine) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid enrichment interval %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := e.Run(ctx, NewSession())
			switch {
			case errors.Is(err, ErrBusy):
				slog.Debug("enrichment tick skipped, previous run is still active")
			case errors.Is(err, model.ErrAnalyzerDisabled):
				slog.Debug("enrichment tick skipped, analyzer disabled")
			case err != nil && !errors.Is(err, context.Canceled):
				slog.Error("scheduled enrichment failed", "error", err)
			}
		}
	}
}

func (e *Engine) setActive(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = s
}

func (e *Engine) run(ctx context.Context, session *Session) (err error) {
	defer func() { session.finish(e.now(), err) }()
	defer e.busy.Store(false)

	total, err := e.items.Count(ctx, model.StatusPending)
	if err != nil {
		return fmt.Errorf("count pending items: %w", err)
	}
	session.start(e.now(), total)

	slog.Info("enrichment started", "session", session.ID(), "pending", total)

	for {
		// Отмена проверяется только между пачками
		if session.Cancelled() {
			slog.Info("enrichment cancelled", "session", session.ID())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch, err := e.items.Pending(ctx, uint64(e.cfg.BatchSize))
		if err != nil {
			return fmt.Errorf("load pending items: %w", err)
		}
		if len(batch) == 0 {
			slog.Info("enrichment finished", "session", session.ID())
			return nil
		}

		if err := e.processBatch(ctx, session, batch); err != nil {
			return err
		}

		remaining, err := e.items.Count(ctx, model.StatusPending)
		if err != nil {
			return fmt.Errorf("count pending items: %w", err)
		}
		session.setRemaining(remaining)

		if remaining == 0 || session.Cancelled() {
			continue
		}

		if err := e.sleep(ctx, e.cfg.Cooldown); err != nil {
			return err
		}
	}
}

func (e *Engine) processBatch(ctx context.Context, session *Session, batch []model.NewsItem) error {
	claimed := make([]model.NewsItem, 0, len(batch))
	for _, item := range batch {
		err := e.items.ApplyTransition(ctx, model.Claim(item.ID))
		if errors.Is(err, model.ErrIllegalTransition) {
			// статью уже забрали или удалили
			continue
		}
		if err != nil {
			e.release(claimed)
			return fmt.Errorf("claim item %d: %w", item.ID, err)
		}
		claimed = append(claimed, item)
	}
	if len(claimed) == 0 {
		return nil
	}

	results, err := e.analyze(ctx, claimed)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrRateLimited),
		errors.Is(err, model.ErrAnalyzerDisabled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		// Пачка возвращается в очередь, статьи не виноваты
		e.release(claimed)
		return err
	default:
		slog.Error("batch analysis failed", "items", len(claimed), "error", err)
		for _, item := range claimed {
			e.apply(ctx, session, model.Fail(item.ID))
		}
		return nil
	}

	for i, item := range claimed {
		result := results[i]
		if result.Err != nil || result.Analysis == nil {
			slog.Warn("item analysis failed", "item", item.ID, "error", result.Err)
			e.apply(ctx, session, model.Fail(item.ID))
			continue
		}

		e.apply(ctx, session, model.Resolve(item.ID, *result.Analysis, e.cfg.QualityFloor))
	}

	return nil
}

// analyze вызывает модель и повторяет пачку при 429 с растущей паузой
func (e *Engine) analyze(ctx context.Context, items []model.NewsItem) ([]model.AnalysisResult, error) {
	inputs := lo.Map(items, func(item model.NewsItem, _ int) model.AnalysisInput {
		return analysisInput(item)
	})

	b := newBackoff(e.cfg.InitialBackoff, e.cfg.MinBackoff, e.cfg.BackoffFactor, e.cfg.MaxRetries)

	for {
		results, err := e.analyzer.Analyze(ctx, inputs)
		if err == nil {
			if len(results) != len(inputs) {
				return nil, fmt.Errorf("analyzer returned %d results for %d items", len(results), len(inputs))
			}
			return results, nil
		}

		if !errors.Is(err, model.ErrRateLimited) {
			return nil, err
		}

		wait, ok := b.Next()
		if !ok {
			return nil, fmt.Errorf("retries exhausted after %d attempts: %w", b.Attempts(), err)
		}

		slog.Warn("analyzer rate limited, retrying", "attempt", b.Attempts(), "wait", wait)

		if err := e.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) apply(ctx context.Context, session *Session, t model.Transition) {
	if err := e.items.ApplyTransition(ctx, t); err != nil {
		slog.Error("failed to apply transition", "item", t.ItemID, "to", t.To, "error", err)
		return
	}
	session.record(t.To)
}

// release возвращает взятые статьи в очередь.
// Контекст свой, потому что родительский мог быть уже отменен.
func (e *Engine) release(items []model.NewsItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, item := range items {
		if err := e.items.ApplyTransition(ctx, model.Release(item.ID)); err != nil {
			slog.Error("failed to release item", "item", item.ID, "error", err)
		}
	}
}

func analysisInput(item model.NewsItem) model.AnalysisInput {
	text := item.Content
	if text == "" {
		text = item.Summary
	}

	return model.AnalysisInput{
		Title:      lo.Ternary(item.OriginalTitle != "", item.OriginalTitle, item.Title),
		Excerpt:    normalize.Excerpt(text, item.URL, excerptLimit),
		SourceName: item.SourceName,
	}
}

const excerptLimit = 500
