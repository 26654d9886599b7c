package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmcp "github.com/csvdeck/csvdeck/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the uploaded tables
to AI agents: list and describe tables, page through rows, run read-only SQL,
profile data quality and review query history.

In stdio mode, the server speaks JSON-RPC over stdin/stdout, suitable for
desktop MCP clients. In http mode, it serves the Streamable HTTP transport.
'csvdeck serve' also mounts the same server at /mcp.`,
		Example: `  csvdeck mcp                              # stdio mode
  csvdeck mcp --transport http --port 3001   # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")
	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))

	return cmd
}

func runMCP(port int) error {
	transport := viper.GetString("mcp.transport")
	if transport != "stdio" && transport != "http" {
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}

	// stdout carries the protocol in stdio mode; newLogger writes to stderr.
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	eng, err := openEngine(ctx, logger)
	cancel()
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := cmcp.NewMCPServer(eng.exec, eng.profiler, eng.audit, versionString(), logger)

	if transport == "stdio" {
		logger.Info("starting MCP stdio server", "tables", len(eng.tables.List()))
		return srv.ServeStdio()
	}
	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting MCP HTTP server", "addr", addr)
	return srv.ServeHTTP(addr)
}
