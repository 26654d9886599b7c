package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/handler"
	"github.com/csvdeck/csvdeck/internal/mcp"
	"github.com/csvdeck/csvdeck/internal/profile"
	"github.com/csvdeck/csvdeck/internal/query"
	"github.com/csvdeck/csvdeck/internal/server/middleware"
	"github.com/csvdeck/csvdeck/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes, applied to uploads
	// Requests per minute per client IP. Zero disables limiting.
	QueryRateLimit  int
	UploadRateLimit int
	// EnableMCP mounts the MCP Streamable HTTP endpoint at /mcp.
	EnableMCP bool
	Version   string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     100 * 1024 * 1024, // 100MB
		QueryRateLimit:  120,
		UploadRateLimit: 30,
		EnableMCP:       true,
		Version:         "dev",
	}
}

// Deps are the engine components the HTTP layer serves.
type Deps struct {
	Exec     *query.Executor
	Ingest   *service.IngestService
	Stats    *service.StatsService
	Audit    *audit.Log
	Profiler *profile.Profiler
	// MCP is mounted at /mcp when Config.EnableMCP is set.
	MCP *mcp.MCPServer
}

// Server is the top-level HTTP server. It owns the chi router and the
// http.Server; the engine components are shared with the CLI.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server with all routes and middleware wired. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "X-Request-ID", "Mcp-Session-Id"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition", "Mcp-Session-Id"},
		MaxAge:         300,
	}))

	tables := s.deps.Exec.Tables()
	sys := handler.NewSystemHandler(tables, s.cfg.Version, s.logger)
	th := handler.NewTableHandler(s.deps.Exec, s.logger)
	uh := handler.NewUploadHandler(s.deps.Ingest, s.cfg.MaxBodySize, s.logger)
	qh := handler.NewQueryHandler(s.deps.Exec, s.logger)
	sh := handler.NewStatsHandler(s.deps.Stats, s.deps.Audit, s.deps.Profiler, s.logger)

	// --- Health checks ---
	r.Get("/healthz", sys.Health)
	r.Get("/readyz", sys.Ready)

	// --- Limited endpoints: uploads and ad hoc SQL ---
	r.With(middleware.RateLimit(s.cfg.UploadRateLimit)).Post("/upload", uh.Upload)
	r.With(middleware.RateLimit(s.cfg.QueryRateLimit)).Post("/query", qh.RunQuery)

	// --- Read API ---
	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Get("/", sys.Index)
		r.Get("/openapi.json", sys.OpenAPI)

		r.Get("/tables", th.ListTables)
		r.Get("/tables/{table}", th.DescribeTable)
		r.Delete("/tables/{table}", th.DeleteTable)
		r.Get("/data/{table}", th.GetData)
		r.Get("/export/{table}", th.ExportTable)

		r.Get("/stats", sh.Stats)
		r.Get("/history", sh.UploadHistory)
		r.Get("/history/queries", sh.QueryHistory)
		r.Get("/quality/{table}", sh.Quality)
	})

	// --- MCP over Streamable HTTP ---
	if s.cfg.EnableMCP && s.deps.MCP != nil {
		r.Handle("/mcp", s.deps.MCP.Handler())
	}

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then drains in-flight requests, including uploads still
// inserting rows, before returning.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads of large files and exports stream for a long time, so
		// only the header read is bounded.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
