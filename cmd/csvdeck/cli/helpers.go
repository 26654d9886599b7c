package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/config"
	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/connector/mssql"
	"github.com/csvdeck/csvdeck/internal/connector/mysql"
	"github.com/csvdeck/csvdeck/internal/connector/oracle"
	"github.com/csvdeck/csvdeck/internal/connector/postgres"
	"github.com/csvdeck/csvdeck/internal/connector/snowflake"
	"github.com/csvdeck/csvdeck/internal/connector/sqlite"
	"github.com/csvdeck/csvdeck/internal/model"
	"github.com/csvdeck/csvdeck/internal/profile"
	"github.com/csvdeck/csvdeck/internal/query"
	"github.com/csvdeck/csvdeck/internal/service"
)

// tablesFile is the default SQLite physical store inside the data directory.
const tablesFile = "tables.db"

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir, the data_dir
// config key (CSVDECK_DATA_DIR), or ~/.csvdeck as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".csvdeck")
}

// newRegistry creates a connector registry with all supported store drivers.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("mysql", func() connector.Connector { return mysql.New() })
	registry.RegisterDriver("mssql", func() connector.Connector { return mssql.New() })
	registry.RegisterDriver("snowflake", func() connector.Connector { return snowflake.New() })
	registry.RegisterDriver("oracle", func() connector.Connector { return oracle.New() })
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	return registry
}

// newLogger builds the process logger from logging.level and logging.format.
// Logs go to stderr so command output on stdout stays clean.
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("logging.level"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("logging.format"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// storeConfig resolves the physical store from store.* keys. An unset
// sqlite DSN means tables.db in the data directory; unset pool limits take
// the model defaults.
func storeConfig() model.StoreConfig {
	sc := model.StoreConfig{
		Driver:         viper.GetString("store.driver"),
		DSN:            viper.GetString("store.dsn"),
		Schema:         viper.GetString("store.schema"),
		PrivateKeyPath: viper.GetString("store.private_key_path"),
		Pool:           model.DefaultPoolConfig(),
	}
	if sc.Driver == "sqlite" && sc.DSN == "" {
		sc.DSN = filepath.Join(resolveDataDir(), tablesFile) +
			"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	if n := viper.GetInt("store.pool.max_open_conns"); n > 0 {
		sc.Pool.MaxOpenConns = n
	}
	if n := viper.GetInt("store.pool.max_idle_conns"); n > 0 {
		sc.Pool.MaxIdleConns = n
	}
	if d := viper.GetDuration("store.pool.conn_max_lifetime"); d > 0 {
		sc.Pool.ConnMaxLifetime = d
	}
	return sc
}

func connectionConfig(sc model.StoreConfig) connector.ConnectionConfig {
	return connector.ConnectionConfig{
		Driver:          sc.Driver,
		DSN:             sc.DSN,
		SchemaName:      sc.Schema,
		PrivateKeyPath:  sc.PrivateKeyPath,
		MaxOpenConns:    sc.Pool.MaxOpenConns,
		MaxIdleConns:    sc.Pool.MaxIdleConns,
		ConnMaxLifetime: sc.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: sc.Pool.ConnMaxIdleTime,
	}
}

// engine bundles the components every command builds on.
type engine struct {
	store    *config.Store
	conn     connector.Connector
	tables   *catalog.Manager
	audit    *audit.Log
	exec     *query.Executor
	profiler *profile.Profiler
	ingest   *service.IngestService
	stats    *service.StatsService
	logger   *slog.Logger
}

// openEngine opens the state store and the physical store, loads the table
// catalog and wires the services. Call Close when done.
func openEngine(ctx context.Context, logger *slog.Logger) (*engine, error) {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := config.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}

	cfg := connectionConfig(storeConfig())
	conn, err := newRegistry().Open(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	tables := catalog.New(conn, store, catalog.Options{
		BatchSize:   viper.GetInt("upload.batch_size"),
		MaxPageSize: viper.GetInt("query.max_page_size"),
	}, logger)
	if err := tables.Load(ctx); err != nil {
		conn.Disconnect()
		store.Close()
		return nil, fmt.Errorf("load table catalog: %w", err)
	}

	log := audit.New(store)
	exec := query.NewExecutor(tables, log, query.Options{
		Timeout: viper.GetDuration("query.timeout"),
		MaxRows: viper.GetInt("query.max_rows"),
	}, logger)
	limiter := service.NewUploadLimiter(viper.GetInt("upload.max_concurrent"), viper.GetDuration("upload.max_wait"))

	logger.Debug("engine ready", "data_dir", dir, "driver", cfg.Driver, "tables", len(tables.List()))
	return &engine{
		store:    store,
		conn:     conn,
		tables:   tables,
		audit:    log,
		exec:     exec,
		profiler: profile.New(exec, logger),
		ingest:   service.NewIngestService(tables, log, limiter, viper.GetInt("upload.sample_rows"), logger),
		stats:    service.NewStatsService(tables, log, versionString()),
		logger:   logger,
	}, nil
}

// Close releases both databases.
func (e *engine) Close() {
	if err := e.conn.Disconnect(); err != nil {
		e.logger.Warn("failed to close store", "error", err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close state store", "error", err)
	}
}

// commandContext bounds one-shot CLI commands.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Minute)
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "csvdeck.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "csvdeck.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
