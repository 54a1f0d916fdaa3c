// Package server exposes the pipeline over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kovalyov-valentin/crypto-intel/internal/enricher"
	"github.com/kovalyov-valentin/crypto-intel/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

type SourceStorage interface {
	Sources(ctx context.Context) ([]model.Source, error)
	SourceByID(ctx context.Context, id string) (*model.Source, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

type ItemStorage interface {
	List(ctx context.Context, filter storage.ItemFilter) ([]model.NewsItem, error)
	ItemByID(ctx context.Context, id int64) (*model.NewsItem, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	Requeue(ctx context.Context, filter storage.RequeueFilter) (int64, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, cutoff model.Cutoff) (fetcher.Report, error)
	AddSource(ctx context.Context, name, feedURL string) (model.Source, fetcher.TestResult, error)
	TestSource(ctx context.Context, id string) (fetcher.TestResult, error)
	RetryFailed(ctx context.Context) ([]fetcher.TestResult, error)
	TestAll(ctx context.Context) ([]fetcher.TestResult, error)
}

type Enricher interface {
	Start(ctx context.Context) (*enricher.Session, error)
	Cancel() bool
	Active() *enricher.Session
}

type Rewriter interface {
	Rewrite(ctx context.Context, id int64, template model.RewriteTemplate) (*model.NewsItem, error)
}

type Pruner interface {
	Prune(ctx context.Context, days int) (int64, error)
	ClearAll(ctx context.Context, confirm string) (int64, error)
}

type Deps struct {
	Sources  SourceStorage
	Items    ItemStorage
	Fetcher  Fetcher
	Enricher Enricher
	Pruner   Pruner
	Rewriter Rewriter
}

type Server struct {
	deps Deps
	// Фоновый прогон анализа переживает запрос, поэтому живет в этом контексте
	runCtx        context.Context
	defaultCutoff model.Cutoff
	retentionDays int
	router        chi.Router
}

func New(runCtx context.Context, deps Deps, defaultCutoff model.Cutoff, retentionDays int) *Server {
	s := &Server{
		deps:          deps,
		runCtx:        runCtx,
		defaultCutoff: defaultCutoff,
		retentionDays: retentionDays,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleAddSource)
			r.Post("/retry", s.handleRetrySources)
			r.Post("/test", s.handleTestAllSources)
			r.Delete("/{sourceID}", s.handleDeleteSource)
			r.Post("/{sourceID}/toggle", s.handleToggleSource)
			r.Post("/{sourceID}/test", s.handleTestSource)
		})

		r.Get("/news", s.handleListNews)
		r.Get("/news/{itemID}", s.handleGetNews)
		r.Post("/news/{itemID}/rewrite", s.handleRewrite)

		r.Post("/fetch", s.handleFetch)

		r.Post("/analyze", s.handleStartAnalysis)
		r.Post("/analyze/cancel", s.handleCancelAnalysis)
		r.Get("/analyze/progress", s.handleProgress)
		r.Post("/reanalyze", s.handleReanalyze)

		r.Post("/prune", s.handlePrune)
		r.Post("/clear", s.handleClear)
	})

	s.router = r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start слушает addr до отмены контекста, потом аккуратно гасит сервер
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
