package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/openapi"
)

// SystemHandler serves the index, health checks and the API description.
type SystemHandler struct {
	tables  *catalog.Manager
	version string
	logger  *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(tables *catalog.Manager, version string, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{tables: tables, version: version, logger: logger}
}

var endpoints = []string{
	"POST /upload",
	"GET /tables",
	"GET /tables/{table}",
	"DELETE /tables/{table}",
	"GET /data/{table}",
	"GET /export/{table}",
	"POST /query",
	"GET /stats",
	"GET /history",
	"GET /history/queries",
	"GET /quality/{table}",
	"GET /openapi.json",
}

// Index describes the service.
// GET /
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"message":   "csvdeck is running",
		"version":   h.version,
		"endpoints": endpoints,
	})
}

// Health is the liveness check.
// GET /healthz
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the backing database answers.
// GET /readyz
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.tables.Conn().Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// OpenAPI returns the API description including one schema per table.
// GET /openapi.json
func (h *SystemHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc := openapi.Generate(h.tables.List(), scheme+"://"+r.Host, h.version)
	writeJSON(w, http.StatusOK, doc)
}
