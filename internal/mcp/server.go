package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/profile"
	"github.com/csvdeck/csvdeck/internal/query"
)

// MCPServer wraps the mcp-go server with csvdeck's tool and resource
// registrations. Every tool is read-only: agents can discover tables, page
// through rows, run audited ad hoc queries and profile columns, but cannot
// upload or drop anything.
type MCPServer struct {
	tables   *catalog.Manager
	exec     *query.Executor
	profiler *profile.Profiler
	audit    *audit.Log
	logger   *slog.Logger
	server   *server.MCPServer
}

// NewMCPServer creates an MCPServer with all tools and resources registered.
func NewMCPServer(exec *query.Executor, profiler *profile.Profiler, log *audit.Log, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		tables:   exec.Tables(),
		exec:     exec,
		profiler: profiler,
		audit:    log,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"csvdeck",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts a standalone Streamable HTTP listener on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

// Handler returns a Streamable HTTP handler for mounting on an existing
// router.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
