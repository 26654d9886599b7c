package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csvdeck/csvdeck/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csvdeck",
		Short: "Turn CSV files into queryable SQL tables",
		Long: `csvdeck: upload a CSV, get a typed SQL table.

csvdeck infers column types from each file, loads it into a table named after the
file, and serves a JSON API for paging, exporting, profiling and running read-only
SQL. Tables live in SQLite by default or in PostgreSQL, MySQL, SQL Server,
Snowflake or Oracle.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./csvdeck.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for state and the default SQLite store (default: ~/.csvdeck)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON even when stdout is a terminal")
	viper.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newTablesCmd())
	cmd.AddCommand(newProfileCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("csvdeck")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.csvdeck")
	}

	viper.SetEnvPrefix("CSVDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}

// setDefaults registers every key of the YAML config with its default so
// env vars and flags resolve even without a config file.
func setDefaults() {
	d := config.DefaultYAMLConfig()
	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	viper.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	viper.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	viper.SetDefault("server.rate_limit.query", d.Server.RateLimit.Query)
	viper.SetDefault("server.rate_limit.upload", d.Server.RateLimit.Upload)
	viper.SetDefault("store.driver", d.Store.Driver)
	viper.SetDefault("store.dsn", d.Store.DSN)
	viper.SetDefault("store.schema", d.Store.Schema)
	viper.SetDefault("store.private_key_path", d.Store.PrivateKeyPath)
	viper.SetDefault("store.pool.max_open_conns", 0)
	viper.SetDefault("store.pool.max_idle_conns", 0)
	viper.SetDefault("store.pool.conn_max_lifetime", "")
	viper.SetDefault("upload.batch_size", d.Upload.BatchSize)
	viper.SetDefault("upload.sample_rows", d.Upload.SampleRows)
	viper.SetDefault("upload.max_concurrent", d.Upload.MaxConcurrent)
	viper.SetDefault("upload.max_wait", d.Upload.MaxWait)
	viper.SetDefault("query.timeout", d.Query.Timeout)
	viper.SetDefault("query.max_rows", d.Query.MaxRows)
	viper.SetDefault("query.max_page_size", d.Query.MaxPageSize)
	viper.SetDefault("mcp.transport", d.MCP.Transport)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
}
