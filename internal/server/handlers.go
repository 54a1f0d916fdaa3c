package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kovalyov-valentin/crypto-intel/internal/enricher"
	"github.com/kovalyov-valentin/crypto-intel/internal/model"
	"github.com/kovalyov-valentin/crypto-intel/internal/retention"
	"github.com/kovalyov-valentin/crypto-intel/internal/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Items.CountByStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"counts": counts,
	})
}

// --- Sources ---

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.deps.Sources.Sources(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeMessage(w, http.StatusBadRequest, "name and url are required")
		return
	}

	source, result, err := s.deps.Fetcher.AddSource(r.Context(), req.Name, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"source": source,
		"test":   result,
	})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sources.Delete(r.Context(), chi.URLParam(r, "sourceID")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")

	source, err := s.deps.Sources.SourceByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.deps.Sources.SetEnabled(r.Context(), id, !source.Enabled); err != nil {
		writeError(w, err)
		return
	}
	source.Enabled = !source.Enabled

	writeJSON(w, http.StatusOK, source)
}

func (s *Server) handleTestSource(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Fetcher.TestSource(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetrySources(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Fetcher.RetryFailed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTestAllSources(w http.ResponseWriter, r *http.Request) {
	results, err := s.deps.Fetcher.TestAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// --- News ---

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.ItemFilter{
		SourceName: q.Get("source"),
		Ticker:     q.Get("ticker"),
		Topic:      q.Get("topic"),
		Limit:      defaultPageSize,
	}

	if v := q.Get("status"); v != "" {
		status, err := model.ParseStatus(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	for name, dst := range map[string]*uint64{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = n
	}
	filter.Limit = min(max(filter.Limit, 1), maxPageSize)

	items, err := s.deps.Items.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.deps.Items.ItemByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		Template string `json:"template"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	template, err := model.ParseRewriteTemplate(req.Template)
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := s.deps.Rewriter.Rewrite(r.Context(), id, template)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// --- Pipeline ---

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	cutoff := s.defaultCutoff
	if v := r.URL.Query().Get("cutoff"); v != "" {
		parsed, err := model.ParseCutoff(v)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		cutoff = parsed
	}

	report, err := s.deps.Fetcher.Fetch(r.Context(), cutoff)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Enricher.Start(s.runCtx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, session.Progress())
}

func (s *Server) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.deps.Enricher.Cancel()})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	session := s.deps.Enricher.Active()
	if session == nil {
		writeMessage(w, http.StatusNotFound, "no enrichment session yet")
		return
	}

	writeJSON(w, http.StatusOK, session.Progress())
}

func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []int64      `json:"ids"`
		Status model.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := s.deps.Items.Requeue(r.Context(), storage.RequeueFilter{IDs: req.IDs, Status: req.Status})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"requeued": n})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Days int `json:"days"`
	}{Days: s.retentionDays}

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Days <= 0 {
		writeMessage(w, http.StatusBadRequest, "days must be positive")
		return
	}

	deleted, err := s.deps.Pruner.Prune(r.Context(), req.Days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deleted, err := s.deps.Pruner.ClearAll(r.Context(), req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError переводит доменные ошибки в коды ответа
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrAlreadyExists), errors.Is(err, enricher.ErrBusy), errors.Is(err, enricher.ErrSessionUsed):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, retention.ErrNotConfirmed), errors.Is(err, model.ErrIllegalTransition), errors.Is(err, model.ErrUnknownTemplate):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAnalyzerDisabled):
		writeMessage(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, model.ErrRateLimited):
		writeMessage(w, http.StatusTooManyRequests, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}
