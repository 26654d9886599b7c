package snowflake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	gosnowflake "github.com/snowflakedb/gosnowflake"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// SnowflakeConnector implements connector.Connector for Snowflake databases.
type SnowflakeConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new SnowflakeConnector with default settings.
func New() connector.Connector {
	return &SnowflakeConnector{schemaName: "PUBLIC"}
}

var types = connector.TypeMap{
	Integer: "NUMBER(38,0)",
	Float:   "FLOAT",
	Text:    "VARCHAR",
	Boolean: "BOOLEAN",
	Date:    "TIMESTAMP_NTZ",
	Ordinal: "NUMBER(38,0)",
}

// errSyntax is Snowflake's "SQL compilation error: syntax error" code.
const errSyntax = 1003

// Connect establishes a connection to the Snowflake database. When
// PrivateKeyPath is set the connector authenticates with a key pair (JWT)
// instead of username/password.
func (c *SnowflakeConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn := cfg.DSN

	if cfg.PrivateKeyPath != "" {
		var err error
		dsn, err = buildJWTDSN(cfg.DSN, cfg.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("snowflake jwt auth: %w", err)
		}
	}

	db, err := sqlx.Connect("snowflake", dsn)
	if err != nil {
		return fmt.Errorf("snowflake connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *SnowflakeConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SnowflakeConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SnowflakeConnector) DB() *sqlx.DB {
	return c.db
}

// GetTableNames returns a list of all table names in the configured schema.
func (c *SnowflakeConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// BuildSelect constructs a SELECT query with LIMIT/OFFSET pagination.
func (c *SnowflakeConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (string, []any, error) {
	return connector.BuildLimitOffsetSelect(c, req)
}

// BuildInsert constructs a multi-row INSERT.
func (c *SnowflakeConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (string, []any, error) {
	return connector.BuildValuesInsert(c, req)
}

// BuildCount constructs a COUNT query.
func (c *SnowflakeConnector) BuildCount(_ context.Context, req connector.CountRequest) (string, []any, error) {
	return connector.BuildCountQuery(c, req)
}

// BuildCreateTable constructs the DDL for an uploaded table.
func (c *SnowflakeConnector) BuildCreateTable(_ context.Context, table string, cols []model.ColumnMeta) (string, error) {
	return connector.BuildCreate(c, types, table, cols)
}

// BuildDropTable constructs a DROP TABLE statement.
func (c *SnowflakeConnector) BuildDropTable(_ context.Context, table string) (string, error) {
	return connector.BuildDrop(c, table)
}

// BindValue converts a cell into a driver argument. Dates are sent as ISO
// text; gosnowflake needs explicit type hints to bind time.Time.
func (c *SnowflakeConnector) BindValue(v model.Value) any {
	if !v.Null && v.Type == model.TypeDate {
		return v.String()
	}
	return v.Interface()
}

// IsSyntaxError reports Snowflake compilation syntax errors.
func (c *SnowflakeConnector) IsSyntaxError(err error) bool {
	var sfErr *gosnowflake.SnowflakeError
	return errors.As(err, &sfErr) && sfErr.Number == errSyntax
}

// DriverName returns the driver identifier for Snowflake.
func (c *SnowflakeConnector) DriverName() string { return "snowflake" }

// QuoteIdentifier wraps a SQL identifier in double quotes for Snowflake.
// Snowflake identifiers are case-sensitive when quoted.
func (c *SnowflakeConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns a Snowflake-style positional parameter
// placeholder (?). Snowflake ignores the index.
func (c *SnowflakeConnector) ParameterPlaceholder(_ int) string {
	return "?"
}

// MaxParams keeps multi-row inserts to a size Snowflake compiles quickly.
func (c *SnowflakeConnector) MaxParams() int { return 16384 }

// TransactionalDDL is false: Snowflake DDL commits the open transaction.
func (c *SnowflakeConnector) TransactionalDDL() bool { return false }
