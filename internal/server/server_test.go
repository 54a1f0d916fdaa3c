package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/kovalyov-valentin/crypto-intel/internal/enricher"
	"github.com/kovalyov-valentin/crypto-intel/internal/fetcher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/retention"
	"github.com/kovalyov-valentin/crypto-intel/internal/rewriter"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

type fakeFetcher struct {
	sources *storage.SourceStorage
	cutoff  model.Cutoff
}

func (f *fakeFetcher) Fetch(_ context.Context, cutoff model.Cutoff) (fetcher.Report, error) {
	f.cutoff = cutoff
	return fetcher.Report{Attempted: 2, Inserted: 1}, nil
}

func (f *fakeFetcher) AddSource(ctx context.Context, name, feedURL string) (model.Source, fetcher.TestResult, error) {
	src := model.Source{Name: name, FeedURL: feedURL, Enabled: true, CreatedAt: time.Now()}
	id, err := f.sources.Add(ctx, src)
	if err != nil {
		return model.Source{}, fetcher.TestResult{}, err
	}
	src.ID = id
	return src, fetcher.TestResult{SourceID: id, Name: name, OK: true, Items: 5}, nil
}

func (f *fakeFetcher) TestSource(ctx context.Context, id string) (fetcher.TestResult, error) {
	src, err := f.sources.SourceByID(ctx, id)
	if err != nil {
		return fetcher.TestResult{}, err
	}
	return fetcher.TestResult{SourceID: id, Name: src.Name, OK: true}, nil
}

func (f *fakeFetcher) RetryFailed(context.Context) ([]fetcher.TestResult, error) {
	return []fetcher.TestResult{}, nil
}

func (f *fakeFetcher) TestAll(ctx context.Context) ([]fetcher.TestResult, error) {
	sources, err := f.sources.Sources(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]fetcher.TestResult, 0, len(sources))
	for _, src := range sources {
		results = append(results, fetcher.TestResult{SourceID: src.ID, Name: src.Name, OK: true})
	}
	return results, nil
}

type fakeLLM struct {
	err error
}

func (f fakeLLM) Rewrite(_ context.Context, item model.NewsItem, template model.RewriteTemplate) (model.Rewrite, error) {
	if f.err != nil {
		return model.Rewrite{}, f.err
	}
	return model.Rewrite{Title: "Рерайт: " + item.Title, Content: "шаблон " + string(template)}, nil
}

type fakeEnricher struct {
	session *enricher.Session
}

func (f *fakeEnricher) Start(context.Context) (*enricher.Session, error) {
	if f.session != nil {
		return nil, enricher.ErrBusy
	}
	f.session = enricher.NewSession()
	return f.session, nil
}

func (f *fakeEnricher) Cancel() bool { return f.session != nil }

func (f *fakeEnricher) Active() *enricher.Session { return f.session }

type testEnv struct {
	srv     *Server
	items   *storage.ItemStorage
	fetcher *fakeFetcher
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	db, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sources := storage.NewSourceStorage(db)
	items := storage.NewItemStorage(db)
	f := &fakeFetcher{sources: sources}

	srv := New(context.Background(), Deps{
		Sources:  sources,
		Items:    items,
		Fetcher:  f,
		Enricher: &fakeEnricher{},
		Pruner:   retention.NewPruner(items),
		Rewriter: rewriter.New(items, fakeLLM{}),
	}, model.Cutoff24h, 30)

	return testEnv{srv: srv, items: items, fetcher: f}
}

func (e testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func seedItem(t *testing.T, items *storage.ItemStorage, fingerprint, ticker string) {
	t.Helper()

	_, err := items.Upsert(context.Background(), model.NewsItem{
		Fingerprint:   fingerprint,
		Title:         "Title " + fingerprint,
		URL:           "https://example.com/" + fingerprint,
		SourceName:    "Example",
		PublishedAt:   time.Now(),
		FetchedAt:     time.Now(),
		CoinTickers:   []string{ticker},
		TopicCategory: "Market",
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	seedItem(t, env.items, "a", "BTC")

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Status string         `json:"status"`
		Counts map[string]int `json:"counts"`
	}](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Counts["PENDING"])
	assert.Equal(t, 0, body.Counts["FAILED"])
}

func TestSourcesLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sources", map[string]string{"name": "Decrypt", "url": "https://decrypt.co/feed"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	created := decode[struct {
		Source model.Source       `json:"source"`
		Test   fetcher.TestResult `json:"test"`
	}](t, rec)
	assert.Equal(t, "Decrypt", created.Source.Name)
	assert.Equal(t, true, created.Test.OK)

	rec = env.do(t, http.MethodPost, "/api/sources", map[string]string{"name": "Again", "url": "https://decrypt.co/feed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sources", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := created.Source.ID

	rec = env.do(t, http.MethodPost, "/api/sources/"+id+"/toggle", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[model.Source](t, rec).Enabled)

	rec = env.do(t, http.MethodPost, "/api/sources/"+id+"/test", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sources", nil)
	assert.Equal(t, 1, len(decode[[]model.Source](t, rec)))

	// выключенный источник тоже проверяется
	rec = env.do(t, http.MethodPost, "/api/sources/test", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	tested := decode[[]fetcher.TestResult](t, rec)
	assert.Equal(t, 1, len(tested))
	assert.Equal(t, id, tested[0].SourceID)

	rec = env.do(t, http.MethodDelete, "/api/sources/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/sources/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNewsFilters(t *testing.T) {
	env := newTestEnv(t)
	seedItem(t, env.items, "a", "BTC")
	seedItem(t, env.items, "b", "ETH")

	rec := env.do(t, http.MethodGet, "/api/news?ticker=ETH", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	news := decode[[]model.NewsItem](t, rec)
	assert.Equal(t, 1, len(news))
	assert.Equal(t, "b", news[0].Fingerprint)
	assert.Equal(t, model.StatusPending, news[0].Status)

	rec = env.do(t, http.MethodGet, "/api/news?status=COMPLETED", nil)
	assert.Equal(t, 0, len(decode[[]model.NewsItem](t, rec)))

	rec = env.do(t, http.MethodGet, "/api/news?status=DONE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/news?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/news/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/news/"+strconv.FormatInt(news[0].ID, 10), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFetchCutoff(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/fetch", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Cutoff24h, env.fetcher.cutoff)

	rec = env.do(t, http.MethodPost, "/api/fetch?cutoff=none", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.CutoffNone, env.fetcher.cutoff)
	assert.Equal(t, 1, decode[fetcher.Report](t, rec).Inserted)

	rec = env.do(t, http.MethodPost, "/api/fetch?cutoff=1w", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/analyze/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/analyze", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/analyze", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analyze/progress", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/analyze/cancel", nil)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["cancelled"])
}

func TestReanalyze(t *testing.T) {
	env := newTestEnv(t)
	seedItem(t, env.items, "a", "BTC")

	ctx := context.Background()
	pending, _ := env.items.Pending(ctx, 1)
	id := pending[0].ID
	assert.Equal(t, nil, env.items.ApplyTransition(ctx, model.Claim(id)))
	assert.Equal(t, nil, env.items.ApplyTransition(ctx, model.Fail(id)))

	rec := env.do(t, http.MethodPost, "/api/reanalyze", map[string]string{"status": "FAILED"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, rec)["requeued"])

	rec = env.do(t, http.MethodPost, "/api/reanalyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reanalyze", map[string]string{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPruneAndClear(t *testing.T) {
	env := newTestEnv(t)
	seedItem(t, env.items, "a", "BTC")

	rec := env.do(t, http.MethodPost, "/api/prune", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[map[string]int64](t, rec)["deleted"])

	rec = env.do(t, http.MethodPost, "/api/prune", map[string]int{"days": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/clear", map[string]string{"confirm": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, true, strings.Contains(rec.Body.String(), "not confirmed"))

	rec = env.do(t, http.MethodPost, "/api/clear", map[string]string{"confirm": retention.ConfirmClearAll})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, rec)["deleted"])
}

func TestRewrite(t *testing.T) {
	env := newTestEnv(t)
	seedItem(t, env.items, "a", "BTC")
	id := strconv.FormatInt(firstItemID(t, env.items), 10)

	rec := env.do(t, http.MethodPost, "/api/news/"+id+"/rewrite", map[string]string{"template": "sector_depth"})
	assert.Equal(t, http.StatusOK, rec.Code)
	item := decode[model.NewsItem](t, rec)
	assert.Equal(t, "Рерайт: Title a", item.Rewrite.Title)
	assert.Equal(t, model.TemplateSectorDepth, item.Rewrite.Template)
	assert.Equal(t, model.StatusPending, item.Status)

	// без тела берется шаблон по умолчанию
	rec = env.do(t, http.MethodPost, "/api/news/"+id+"/rewrite", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TemplateHotEvent, decode[model.NewsItem](t, rec).Rewrite.Template)

	rec = env.do(t, http.MethodGet, "/api/news/"+id, nil)
	assert.Equal(t, model.TemplateHotEvent, decode[model.NewsItem](t, rec).Rewrite.Template)

	rec = env.do(t, http.MethodPost, "/api/news/"+id+"/rewrite", map[string]string{"template": "clickbait"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/news/9999/rewrite", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/news/abc/rewrite", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRewriteAnalyzerDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.srv.deps.Rewriter = rewriter.New(env.items, fakeLLM{err: model.ErrAnalyzerDisabled})
	seedItem(t, env.items, "a", "BTC")

	rec := env.do(t, http.MethodPost, "/api/news/"+strconv.FormatInt(firstItemID(t, env.items), 10)+"/rewrite", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func firstItemID(t *testing.T, items *storage.ItemStorage) int64 {
	t.Helper()

	all, err := items.List(context.Background(), storage.ItemFilter{})
	if err != nil || len(all) == 0 {
		t.Fatalf("list items: %v", err)
	}
	return all[0].ID
}
