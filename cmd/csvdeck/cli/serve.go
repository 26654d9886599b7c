package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csvdeck/csvdeck/internal/mcp"
	"github.com/csvdeck/csvdeck/internal/server"
)

const banner = `
  ___ _____   ___  ___ ___ _  __
 / __/ __\ \ / / \| __/ __| |/ /
| (__\__ \\ V /| |) | _| (__| ' <
 \___|___/ \_/ |___/|___\___|_|\_\
`

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		noMCP      bool
		background bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the csvdeck API server",
		Long: `Start the HTTP server that accepts CSV uploads and serves the table API.

The MCP endpoint is mounted at /mcp unless --no-mcp is given. With --background
the server detaches and writes its PID and log to the data directory; use
'csvdeck status' and 'csvdeck stop' to manage it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return startBackground()
			}
			return runServe(noMCP)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Do not mount the MCP endpoint at /mcp")
	cmd.Flags().BoolVarP(&background, "background", "d", false, "Run the server detached in the background")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(noMCP bool) error {
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	eng, err := openEngine(ctx, logger)
	cancel()
	if err != nil {
		return err
	}
	defer eng.Close()

	srvCfg := server.DefaultConfig()
	srvCfg.Host = viper.GetString("server.host")
	srvCfg.Port = viper.GetInt("server.port")
	if d := viper.GetDuration("server.shutdown_timeout"); d > 0 {
		srvCfg.ShutdownTimeout = d
	}
	srvCfg.CORSOrigins = viper.GetStringSlice("server.cors.origins")
	srvCfg.MaxBodySize = int64(viper.GetSizeInBytes("server.max_body_size"))
	srvCfg.QueryRateLimit = viper.GetInt("server.rate_limit.query")
	srvCfg.UploadRateLimit = viper.GetInt("server.rate_limit.upload")
	srvCfg.EnableMCP = !noMCP
	srvCfg.Version = versionString()

	deps := server.Deps{
		Exec:     eng.exec,
		Ingest:   eng.ingest,
		Stats:    eng.stats,
		Audit:    eng.audit,
		Profiler: eng.profiler,
	}
	if srvCfg.EnableMCP {
		deps.MCP = mcp.NewMCPServer(eng.exec, eng.profiler, eng.audit, srvCfg.Version, logger)
	}

	// A foreground server started by startBackground owns the PID file.
	if os.Getenv("CSVDECK_DAEMON") == "1" {
		if err := writePID(os.Getpid()); err != nil {
			logger.Warn("failed to write PID file", "error", err)
		}
		defer removePID()
	} else {
		fmt.Fprint(os.Stderr, banner)
		fmt.Fprintln(os.Stderr)
	}

	srv := server.New(srvCfg, deps, logger)

	addr := fmt.Sprintf("http://%s:%d", displayHost(srvCfg.Host), srvCfg.Port)
	fmt.Fprintf(os.Stderr, "→ csvdeck %s\n", srvCfg.Version)
	fmt.Fprintf(os.Stderr, "→ Listening on %s\n", addr)
	fmt.Fprintf(os.Stderr, "→ OpenAPI:    %s/openapi.json\n", addr)
	if srvCfg.EnableMCP {
		fmt.Fprintf(os.Stderr, "→ MCP:        %s/mcp\n", addr)
	}
	fmt.Fprintf(os.Stderr, "→ Tables:     %d (%s)\n", len(eng.tables.List()), viper.GetString("store.driver"))
	fmt.Fprintln(os.Stderr)

	return srv.ListenAndServe()
}

// startBackground re-executes the binary as a detached "serve" process with
// output redirected to the log file.
func startBackground() error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve"}
	for _, a := range os.Args[1:] {
		if a == "--background" || a == "-d" || a == "serve" {
			continue
		}
		args = append(args, a)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Env = append(os.Environ(), "CSVDECK_DAEMON=1", "CSVDECK_DATA_DIR="+resolveDataDir())
	setSysProcAttr(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Printf("csvdeck server started in background (PID %d)\n", child.Process.Pid)
	fmt.Printf("  Logs: %s\n", logFilePath())
	return child.Process.Release()
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "127.0.0.1"
	}
	return host
}
