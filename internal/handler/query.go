package handler

import (
	"log/slog"
	"net/http"

	"github.com/csvdeck/csvdeck/internal/query"
)

// QueryHandler runs ad hoc read-only SQL.
type QueryHandler struct {
	exec   *query.Executor
	logger *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(exec *query.Executor, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{exec: exec, logger: logger}
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	TookMs    float64          `json:"took_ms"`
}

// RunQuery executes one statement and returns its rows as objects.
// POST /query
func (h *QueryHandler) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.exec.RunAdHoc(r.Context(), req.Query)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:   res.Columns,
		Rows:      rowObjects(res.Columns, res.Rows),
		RowCount:  len(res.Rows),
		Truncated: res.Truncated,
		TookMs:    float64(res.Took.Microseconds()) / 1000,
	})
}
