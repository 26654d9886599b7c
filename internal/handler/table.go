package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/model"
	"github.com/csvdeck/csvdeck/internal/query"
)

// Default page for GET /data/{table}.
const (
	defaultPage  = 1
	defaultLimit = 50
)

// TableHandler serves the uploaded tables: listing, paging, export and
// deletion.
type TableHandler struct {
	tables *catalog.Manager
	exec   *query.Executor
	logger *slog.Logger
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(exec *query.Executor, logger *slog.Logger) *TableHandler {
	return &TableHandler{tables: exec.Tables(), exec: exec, logger: logger}
}

// ListTables returns the names of all tables in lexical order.
// GET /tables
func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	metas := h.tables.List()
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": names})
}

// DescribeTable returns a table's columns and row count.
// GET /tables/{table}
func (h *TableHandler) DescribeTable(w http.ResponseWriter, r *http.Request) {
	meta, err := h.tables.Get(chi.URLParam(r, "table"))
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type pageResponse struct {
	Table     string                   `json:"table"`
	Columns   []string                 `json:"columns"`
	Schema    []model.ColumnMeta       `json:"schema"`
	Rows      []map[string]model.Value `json:"rows"`
	TotalRows int64                    `json:"total_rows"`
	Page      int                      `json:"page"`
	Limit     int                      `json:"limit"`
}

// GetData returns one page of a table in file order.
// GET /data/{table}?page=1&limit=50
func (h *TableHandler) GetData(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r, "page", defaultPage)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	limit, err := pageParam(r, "limit", defaultLimit)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	res, err := h.exec.RunPaginated(r.Context(), chi.URLParam(r, "table"), page, limit)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	cols := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		cols[i] = c.Name
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Table:     res.Table,
		Columns:   cols,
		Schema:    res.Columns,
		Rows:      rowObjects(cols, res.Rows),
		TotalRows: res.TotalRows,
		Page:      res.Page,
		Limit:     res.Limit,
	})
}

// DeleteTable drops a table. Upload history is kept.
// DELETE /tables/{table}
func (h *TableHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	if err := h.tables.Delete(r.Context(), name); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Table " + name + " deleted successfully"})
}

// ExportTable streams a table as a CSV attachment.
// GET /export/{table}
func (h *TableHandler) ExportTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	if _, err := h.tables.Get(name); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition(name))
	cw := &countingWriter{w: w}
	if err := h.tables.Export(r.Context(), name, cw); err != nil {
		if cw.n == 0 {
			w.Header().Del("Content-Disposition")
			writeEngineError(w, h.logger, err)
			return
		}
		h.logger.Error("export aborted", "table", name, "bytes", cw.n, "error", err)
	}
}

type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
