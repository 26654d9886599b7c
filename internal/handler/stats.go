package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/profile"
	"github.com/csvdeck/csvdeck/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// StatsHandler serves the dashboard, history and data-quality views.
type StatsHandler struct {
	stats    *service.StatsService
	audit    *audit.Log
	profiler *profile.Profiler
	logger   *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats *service.StatsService, log *audit.Log, profiler *profile.Profiler, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, audit: log, profiler: profiler, logger: logger}
}

// Stats returns dashboard aggregates.
// GET /stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UploadHistory lists uploads, newest first.
// GET /history?limit=50
func (h *StatsHandler) UploadHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.audit.ListUploads(r.Context(), historyLimit(r))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": recs})
}

// QueryHistory lists ad hoc queries, newest first.
// GET /history/queries?limit=50
func (h *StatsHandler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.audit.ListQueries(r.Context(), historyLimit(r))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": recs})
}

// Quality profiles one table.
// GET /quality/{table}
func (h *StatsHandler) Quality(w http.ResponseWriter, r *http.Request) {
	res, err := h.profiler.Profile(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func historyLimit(r *http.Request) int {
	return clampInt(queryInt(r, "limit", defaultHistoryLimit), 1, maxHistoryLimit)
}

// clampInt restricts v to the range [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
