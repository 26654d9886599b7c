package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// SQLiteConnector implements connector.Connector for SQLite databases.
type SQLiteConnector struct {
	db *sqlx.DB
}

// New creates a new SQLiteConnector.
func New() connector.Connector {
	return &SQLiteConnector{}
}

var types = connector.TypeMap{
	Integer: "INTEGER",
	Float:   "REAL",
	Text:    "TEXT",
	Boolean: "INTEGER",
	Date:    "TEXT",
	Ordinal: "INTEGER",
}

// Connect opens the SQLite database file specified in the DSN. An empty DSN
// or ":memory:" opens a private in-memory database; the pool is pinned to a
// single connection so every query sees the same database.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn := cfg.DSN
	memory := dsn == "" || dsn == ":memory:"
	if memory {
		dsn = ":memory:"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	if memory {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 && !memory {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 && !memory {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// GetTableNames returns all user tables in the main database.
func (c *SQLiteConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// BuildSelect constructs a SELECT query with LIMIT/OFFSET pagination.
func (c *SQLiteConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (string, []any, error) {
	return connector.BuildLimitOffsetSelect(c, req)
}

// BuildInsert constructs a multi-row INSERT.
func (c *SQLiteConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (string, []any, error) {
	return connector.BuildValuesInsert(c, req)
}

// BuildCount constructs a COUNT query.
func (c *SQLiteConnector) BuildCount(_ context.Context, req connector.CountRequest) (string, []any, error) {
	return connector.BuildCountQuery(c, req)
}

// BuildCreateTable constructs the DDL for an uploaded table. Booleans are
// stored as 0/1 integers and dates as ISO-8601 text, which sorts correctly.
func (c *SQLiteConnector) BuildCreateTable(_ context.Context, table string, cols []model.ColumnMeta) (string, error) {
	return connector.BuildCreate(c, types, table, cols)
}

// BuildDropTable constructs a DROP TABLE statement.
func (c *SQLiteConnector) BuildDropTable(_ context.Context, table string) (string, error) {
	return connector.BuildDrop(c, table)
}

// BindValue converts a cell into a driver argument.
func (c *SQLiteConnector) BindValue(v model.Value) any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case model.TypeBoolean:
		if v.Bool {
			return int64(1)
		}
		return int64(0)
	case model.TypeDate:
		return v.String()
	}
	return v.Interface()
}

// IsSyntaxError reports whether err is a SQL parse error. SQLite reports
// these with the generic SQLITE_ERROR code, so the message is inspected.
func (c *SQLiteConnector) IsSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "syntax error") || strings.Contains(msg, "incomplete input") ||
		strings.Contains(msg, "unrecognized token")
}

// DriverName returns the driver identifier for SQLite.
func (c *SQLiteConnector) DriverName() string { return "sqlite" }

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes to prevent SQL injection.
func (c *SQLiteConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParameterPlaceholder returns a SQLite-style positional parameter
// placeholder (?). SQLite ignores the index.
func (c *SQLiteConnector) ParameterPlaceholder(_ int) string {
	return "?"
}

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite 3.32 and later.
func (c *SQLiteConnector) MaxParams() int { return 32766 }

// TransactionalDDL is true: SQLite rolls back CREATE TABLE with the transaction.
func (c *SQLiteConnector) TransactionalDDL() bool { return true }
