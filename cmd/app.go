package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/kovalyov-valentin/crypto-intel/internal/analyzer"
	"github.com/kovalyov-valentin/crypto-intel/internal/config"
	"github.com/kovalyov-valentin/crypto-intel/internal/enricher"
	"github.com/kovalyov-valentin/crypto-intel/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-intel/internal/health"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/retention"
	"github.com/kovalyov-valentin/crypto-intel/internal/rewriter"
	"github.com/kovalyov-valentin/crypto-intel/internal/source"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

// app держит собранные зависимости, общие для всех команд
type app struct {
	cfg       config.Config
	db        *sqlx.DB
	sources   *storage.SourceStorage
	items     *storage.ItemStorage
	retriever *source.Retriever
	fetcher   *fetcher.Fetcher
	engine    *enricher.Engine
	pruner    *retention.Pruner
	rewriter  *rewriter.Service
	cutoff    model.Cutoff
}

// Модель и классифицирует очередь, и переписывает статьи
type languageModel interface {
	enricher.Analyzer
	rewriter.Rewriter
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	cutoff, err := model.ParseCutoff(cfg.FetchCutoff)
	if err != nil {
		return nil, err
	}

	retriever, err := newRetriever(cfg)
	if err != nil {
		return nil, err
	}

	llm, err := newAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	// Инициализируем подключение к БД
	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var (
		sourceStorage = storage.NewSourceStorage(db)
		itemStorage   = storage.NewItemStorage(db)
	)

	a := &app{
		cfg:       cfg,
		db:        db,
		sources:   sourceStorage,
		items:     itemStorage,
		retriever: retriever,
		fetcher: fetcher.NewFetcher(
			itemStorage,
			sourceStorage,
			health.NewTracker(sourceStorage),
			retriever,
			cfg.FetchInterval,
			cutoff,
			cfg.FetchConcurrency,
			cfg.FilterKeywords,
		),
		engine: enricher.New(itemStorage, llm, enricher.Config{
			BatchSize:      cfg.EnrichBatchSize,
			Cooldown:       cfg.EnrichCooldown,
			MaxRetries:     cfg.EnrichMaxRetries,
			InitialBackoff: cfg.EnrichInitialBackoff,
			MinBackoff:     cfg.EnrichMinBackoff,
			QualityFloor:   cfg.EnrichQualityFloor,
		}, nil),
		pruner:   retention.NewPruner(itemStorage),
		rewriter: rewriter.New(itemStorage, llm),
		cutoff:   cutoff,
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// seed добавляет источники по умолчанию, уже существующие не трогает
func (a *app) seed(ctx context.Context) error {
	defaults, err := config.LoadSources(a.cfg.SourcesFile)
	if err != nil {
		return err
	}

	added, err := a.sources.AddIfMissing(ctx, defaults)
	if err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}
	if added > 0 {
		slog.Info("default sources added", "count", added)
	}

	return nil
}

// Прямой запрос идет первым, прокси пробуются по порядку из конфига
func newRetriever(cfg config.Config) (*source.Retriever, error) {
	client := &http.Client{}

	strategies := []source.Strategy{
		source.DirectStrategy{UserAgent: cfg.FetchUserAgent, Client: client},
	}
	for _, spec := range cfg.FetchProxies {
		proxy, err := source.ParseProxy(spec)
		if err != nil {
			return nil, err
		}
		proxy.Client = client
		strategies = append(strategies, proxy)
	}

	return source.NewRetriever(cfg.FetchTimeout, cfg.FetchMinBodySize, strategies...), nil
}

func newAnalyzer(cfg config.Config) (languageModel, error) {
	switch cfg.AnalyzerProvider {
	case "", "openai":
		return analyzer.NewOpenAIAnalyzer(analyzer.Options{
			APIKey:            cfg.OpenAIKey,
			Model:             cfg.OpenAIModel,
			BaseURL:           cfg.OpenAIBaseURL,
			Prompt:            cfg.AnalyzerPrompt,
			RequestsPerMinute: cfg.AnalyzerRPM,
		}), nil
	case "anthropic":
		return analyzer.NewAnthropicAnalyzer(analyzer.Options{
			APIKey:            cfg.AnthropicKey,
			Model:             cfg.AnthropicModel,
			Prompt:            cfg.AnalyzerPrompt,
			RequestsPerMinute: cfg.AnalyzerRPM,
		}), nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q, expected openai or anthropic", cfg.AnalyzerProvider)
	}
}
