package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// MySQLConnector implements connector.Connector for MySQL databases.
type MySQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MySQLConnector with default settings.
func New() connector.Connector {
	return &MySQLConnector{}
}

var types = connector.TypeMap{
	Integer: "BIGINT",
	Float:   "DOUBLE",
	Text:    "LONGTEXT",
	Boolean: "BOOLEAN",
	Date:    "DATETIME(6)",
	Ordinal: "BIGINT",
}

// ER_PARSE_ERROR and ER_SYNTAX_ERROR.
const (
	errParse  = 1064
	errSyntax = 1149
)

// Connect establishes a connection to the MySQL database using the provided
// configuration. It configures connection pool settings and stores the schema
// name for introspection queries.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
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

	// If no schema name provided, query the current database name
	if c.schemaName == "" {
		var dbName string
		if err := db.Get(&dbName, "SELECT DATABASE()"); err == nil && dbName != "" {
			c.schemaName = dbName
		}
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

// GetTableNames returns a list of all table names in the configured schema.
func (c *MySQLConnector) GetTableNames(ctx context.Context) ([]string, error) {
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
func (c *MySQLConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (string, []any, error) {
	return connector.BuildLimitOffsetSelect(c, req)
}

// BuildInsert constructs a multi-row INSERT.
func (c *MySQLConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (string, []any, error) {
	return connector.BuildValuesInsert(c, req)
}

// BuildCount constructs a COUNT query.
func (c *MySQLConnector) BuildCount(_ context.Context, req connector.CountRequest) (string, []any, error) {
	return connector.BuildCountQuery(c, req)
}

// BuildCreateTable constructs the DDL for an uploaded table.
func (c *MySQLConnector) BuildCreateTable(_ context.Context, table string, cols []model.ColumnMeta) (string, error) {
	return connector.BuildCreate(c, types, table, cols)
}

// BuildDropTable constructs a DROP TABLE statement.
func (c *MySQLConnector) BuildDropTable(_ context.Context, table string) (string, error) {
	return connector.BuildDrop(c, table)
}

// BindValue converts a cell into a driver argument.
func (c *MySQLConnector) BindValue(v model.Value) any {
	return v.Interface()
}

// IsSyntaxError reports MySQL parse errors.
func (c *MySQLConnector) IsSyntaxError(err error) bool {
	var myErr *mysqldriver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errParse || myErr.Number == errSyntax
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }

// QuoteIdentifier wraps a SQL identifier in backticks, escaping any
// embedded backticks to prevent SQL injection.
func (c *MySQLConnector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ParameterPlaceholder returns a MySQL-style positional parameter
// placeholder (?). MySQL ignores the index.
func (c *MySQLConnector) ParameterPlaceholder(_ int) string {
	return "?"
}

// MaxParams is the prepared statement placeholder limit.
func (c *MySQLConnector) MaxParams() int { return 65535 }

// TransactionalDDL is false: MySQL commits implicitly around DDL.
func (c *MySQLConnector) TransactionalDDL() bool { return false }
