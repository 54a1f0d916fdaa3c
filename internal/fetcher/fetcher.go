package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tomakado/containers/set"
	"golang.org/x/sync/errgroup"

	"github.com/kovalyov-valentin/crypto-intel/internal/classifier"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/normalize"
	"github.com/kovalyov-valentin/crypto-intel/internal/source"
)

const DefaultConcurrency = 8

type ArticleStorage interface {
	Upsert(ctx context.Context, item model.NewsItem) (bool, error)
}

type SourceProvider interface {
	Sources(ctx context.Context) ([]model.Source, error)
	EnabledSources(ctx context.Context) ([]model.Source, error)
	SourceByID(ctx context.Context, id string) (*model.Source, error)
	Add(ctx context.Context, source model.Source) (string, error)
}

type HealthRecorder interface {
	Record(ctx context.Context, sourceID string, fetchErr error) error
}

// Интерфейс источника
type Source interface {
	ID() string
	Name() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

// Структура сборщика
type Fetcher struct {
	// Хранилище статей
	articles ArticleStorage
	// Хранилище источников
	sources SourceProvider
	health  HealthRecorder

	retriever *source.Retriever
	// Из модели источника делает клиент, в тестах подменяется
	newSource func(m model.Source) Source

	// Как часто нам надо обновлять источники и доставать статьи
	fetchInterval time.Duration
	// Окно свежести для периодических проходов
	cutoff model.Cutoff
	// Сколько источников опрашиваем одновременно
	concurrency int
	// Фильтрация статей по ключевым словами
	filterKeywords []string

	now func() time.Time
}

func NewFetcher(
	articles ArticleStorage,
	sources SourceProvider,
	health HealthRecorder,
	retriever *source.Retriever,
	fetchInterval time.Duration,
	cutoff model.Cutoff,
	concurrency int,
	filterKeywords []string,
) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	keywords := make([]string, 0, len(filterKeywords))
	for _, k := range filterKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return &Fetcher{
		articles:  articles,
		sources:   sources,
		health:    health,
		retriever: retriever,
		newSource: func(m model.Source) Source {
			return source.NewRSSSourceFromModel(m, retriever)
		},
		fetchInterval:  fetchInterval,
		cutoff:         cutoff,
		concurrency:    concurrency,
		filterKeywords: keywords,
		now:            time.Now,
	}
}

// Fetcher работает в отдельной горутине как самостоятельный воркер
// и по fetchInterval забирает статьи со всех включенных источников
func (f *Fetcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(f.fetchInterval)
	defer ticker.Stop()

	f.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.pass(ctx)
		}
	}
}

func (f *Fetcher) pass(ctx context.Context) {
	report, err := f.Fetch(ctx, f.cutoff)
	if err != nil {
		slog.Error("fetch pass failed", "error", err)
		return
	}

	slog.Info("fetch pass finished",
		"sources", len(report.Sources),
		"attempted", report.Attempted,
		"inserted", report.Inserted,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
}

// Fetch делает один проход по всем включенным источникам.
// Ошибка одного источника не мешает остальным, она попадает в отчет и в health.
func (f *Fetcher) Fetch(ctx context.Context, cutoff model.Cutoff) (Report, error) {
	report := Report{StartedAt: f.now()}

	sources, err := f.sources.EnabledSources(ctx)
	if err != nil {
		return report, fmt.Errorf("load sources: %w", err)
	}

	// У каждой горутины свой слот в отчете, общего состояния нет
	report.Sources = make([]SourceReport, len(sources))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, src := range sources {
		report.Sources[i] = SourceReport{SourceID: src.ID, Name: src.Name}
		slot := &report.Sources[i]
		rssSource := f.newSource(src)

		g.Go(func() error {
			f.fetchSource(ctx, rssSource, cutoff, slot)
			return nil
		})
	}

	_ = g.Wait()

	for _, s := range report.Sources {
		report.Attempted += s.Admitted
		report.Inserted += s.Stored
	}
	report.FinishedAt = f.now()

	return report, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src Source, cutoff model.Cutoff, slot *SourceReport) {
	items, err := src.Fetch(ctx)
	if recordErr := f.health.Record(ctx, src.ID(), err); recordErr != nil {
		slog.Warn("health not recorded", "source", src.Name(), "error", recordErr)
	}

	if err != nil {
		slog.Error("fetching items from source", "source", src.Name(), "error", err)
		slot.setError(err)
		return
	}

	slot.Fetched = len(items)

	if err := f.processItems(ctx, items, cutoff, slot); err != nil {
		slog.Error("processing items from source", "source", src.Name(), "error", err)
		slot.setError(err)
	}
}

// Метод для процессинга: окно свежести, фильтр, нормализация, разметка и сохранение
func (f *Fetcher) processItems(ctx context.Context, items []model.Item, cutoff model.Cutoff, slot *SourceReport) error {
	now := f.now().UTC()

	for _, item := range items {
		item.Date = item.Date.UTC()

		if !cutoff.Admits(item.Date, now) {
			continue
		}

		// Проверка item, может его нужно скипнуть
		if f.itemShouldBeSkipped(item) {
			continue
		}

		slot.Admitted++

		inserted, err := f.articles.Upsert(ctx, f.newsItem(item, now))
		if err != nil {
			return err
		}
		if inserted {
			slot.Stored++
		}
	}

	return nil
}

func (f *Fetcher) newsItem(item model.Item, now time.Time) model.NewsItem {
	summary := normalize.Summary(item.Description)
	classified := classifier.Classify(item.Title, summary, item.Categories)

	return model.NewsItem{
		Fingerprint:   normalize.Fingerprint(item.Link, item.Title),
		Title:         item.Title,
		OriginalTitle: item.Title,
		URL:           item.Link,
		SourceName:    item.SourceName,
		PublishedAt:   item.Date,
		FetchedAt:     now,
		Content:       item.Content,
		Summary:       summary,
		Tags:          classified.Tags,
		CoinTickers:   classified.Tickers,
		TopicCategory: classified.Topic,
		Status:        model.StatusPending,
	}
}

// Проходимся по категориям статьи и по title.
// Если там есть стоп слово, статью не сохраняем
func (f *Fetcher) itemShouldBeSkipped(item model.Item) bool {
	if len(f.filterKeywords) == 0 {
		return false
	}

	categories := make([]string, 0, len(item.Categories))
	for _, c := range item.Categories {
		categories = append(categories, strings.ToLower(c))
	}
	// Сет, чтобы быстро проверять есть ли ключевое слово среди категорий
	categoriesSet := set.New(categories...)
	title := strings.ToLower(item.Title)

	for _, keyword := range f.filterKeywords {
		if categoriesSet.Contains(keyword) || strings.Contains(title, keyword) {
			return true
		}
	}

	return false
}

// TestSource проверяет сохраненный источник и пишет результат в health
func (f *Fetcher) TestSource(ctx context.Context, id string) (TestResult, error) {
	src, err := f.sources.SourceByID(ctx, id)
	if err != nil {
		return TestResult{}, err
	}

	return f.test(ctx, *src), nil
}

func (f *Fetcher) test(ctx context.Context, src model.Source) TestResult {
	count, err := source.Test(ctx, f.retriever, src.FeedURL)
	if recordErr := f.health.Record(ctx, src.ID, err); recordErr != nil {
		slog.Warn("health not recorded", "source", src.Name, "error", recordErr)
	}

	result := TestResult{SourceID: src.ID, Name: src.Name, Items: count, OK: err == nil}
	if err != nil {
		result.Error = err.Error()
	}

	return result
}

// RetryFailed заново проверяет все источники, у которых последний опрос упал
func (f *Fetcher) RetryFailed(ctx context.Context) ([]TestResult, error) {
	return f.testMatching(ctx, func(src model.Source) bool {
		return src.Health.Status == model.HealthError
	})
}

// TestAll проверяет все источники, выключенные тоже
func (f *Fetcher) TestAll(ctx context.Context) ([]TestResult, error) {
	return f.testMatching(ctx, func(model.Source) bool { return true })
}

func (f *Fetcher) testMatching(ctx context.Context, match func(model.Source) bool) ([]TestResult, error) {
	sources, err := f.sources.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	var (
		mu      sync.Mutex
		results []TestResult
		g       errgroup.Group
	)
	g.SetLimit(f.concurrency)

	for _, src := range sources {
		if !match(src) {
			continue
		}

		src := src
		g.Go(func() error {
			result := f.test(ctx, src)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return results, nil
}

// AddSource сохраняет источник и сразу его проверяет.
// Неудачная проверка не отменяет добавление, она только попадает в health.
func (f *Fetcher) AddSource(ctx context.Context, name, feedURL string) (model.Source, TestResult, error) {
	src := model.Source{
		Name:      strings.TrimSpace(name),
		FeedURL:   strings.TrimSpace(feedURL),
		Enabled:   true,
		Health:    model.Health{Status: model.HealthUnknown},
		CreatedAt: f.now().UTC(),
	}
	if src.Name == "" || src.FeedURL == "" {
		return model.Source{}, TestResult{}, fmt.Errorf("source name and feed url are required")
	}

	id, err := f.sources.Add(ctx, src)
	if err != nil {
		return model.Source{}, TestResult{}, err
	}
	src.ID = id

	return src, f.test(ctx, src), nil
}
