package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
type PostgresConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new PostgresConnector with default settings.
func New() connector.Connector {
	return &PostgresConnector{schemaName: "public"}
}

var types = connector.TypeMap{
	Integer: "BIGINT",
	Float:   "DOUBLE PRECISION",
	Text:    "TEXT",
	Boolean: "BOOLEAN",
	Date:    "TIMESTAMP",
	Ordinal: "BIGINT",
}

// Connect establishes a connection to the PostgreSQL database using the
// provided configuration. It configures connection pool settings and stores
// the schema name for introspection queries.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
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
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// GetTableNames returns a list of all table names in the configured schema.
func (c *PostgresConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// BuildSelect constructs a SELECT query with LIMIT/OFFSET pagination.
func (c *PostgresConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (string, []any, error) {
	return connector.BuildLimitOffsetSelect(c, req)
}

// BuildInsert constructs a multi-row INSERT with $n placeholders.
func (c *PostgresConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (string, []any, error) {
	return connector.BuildValuesInsert(c, req)
}

// BuildCount constructs a COUNT query.
func (c *PostgresConnector) BuildCount(_ context.Context, req connector.CountRequest) (string, []any, error) {
	return connector.BuildCountQuery(c, req)
}

// BuildCreateTable constructs the DDL for an uploaded table.
func (c *PostgresConnector) BuildCreateTable(_ context.Context, table string, cols []model.ColumnMeta) (string, error) {
	return connector.BuildCreate(c, types, table, cols)
}

// BuildDropTable constructs a DROP TABLE statement.
func (c *PostgresConnector) BuildDropTable(_ context.Context, table string) (string, error) {
	return connector.BuildDrop(c, table)
}

// BindValue converts a cell into a driver argument. pgx handles every Go
// scalar natively.
func (c *PostgresConnector) BindValue(v model.Value) any {
	return v.Interface()
}

// IsSyntaxError reports SQLSTATE class 42601 (syntax_error).
func (c *PostgresConnector) IsSyntaxError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42601"
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (c *PostgresConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns a PostgreSQL-style numbered parameter
// placeholder (e.g., $1, $2, $3).
func (c *PostgresConnector) ParameterPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// MaxParams is the wire protocol's 16-bit parameter count limit.
func (c *PostgresConnector) MaxParams() int { return 65535 }

// TransactionalDDL is true: PostgreSQL DDL participates in transactions.
func (c *PostgresConnector) TransactionalDDL() bool { return true }
