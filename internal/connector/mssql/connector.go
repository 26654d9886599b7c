package mssql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	mssqldriver "github.com/microsoft/go-mssqldb"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// MSSQLConnector implements connector.Connector for SQL Server databases.
type MSSQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MSSQLConnector with default settings.
func New() connector.Connector {
	return &MSSQLConnector{schemaName: "dbo"}
}

var types = connector.TypeMap{
	Integer: "BIGINT",
	Float:   "FLOAT",
	Text:    "NVARCHAR(MAX)",
	Boolean: "BIT",
	Date:    "DATETIME2",
	Ordinal: "BIGINT",
}

// SQL Server error numbers raised by the parser.
var syntaxErrors = map[int32]bool{
	102: true, // Incorrect syntax near '%s'.
	105: true, // Unclosed quotation mark after the character string.
	156: true, // Incorrect syntax near the keyword '%s'.
	170: true, // Line %d: Incorrect syntax near '%s'.
}

// Connect establishes a connection to the SQL Server database using the
// provided configuration. It configures connection pool settings and stores
// the schema name for introspection queries.
func (c *MSSQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlserver", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mssql connect: %w", err)
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
func (c *MSSQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MSSQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MSSQLConnector) DB() *sqlx.DB {
	return c.db
}

// GetTableNames returns a list of all table names in the configured schema.
func (c *MSSQLConnector) GetTableNames(ctx context.Context) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// BuildSelect constructs a SELECT query with OFFSET/FETCH pagination.
func (c *MSSQLConnector) BuildSelect(_ context.Context, req connector.SelectRequest) (string, []any, error) {
	return connector.BuildFetchSelect(c, req)
}

// BuildInsert constructs a multi-row INSERT with @pN placeholders.
func (c *MSSQLConnector) BuildInsert(_ context.Context, req connector.InsertRequest) (string, []any, error) {
	return connector.BuildValuesInsert(c, req)
}

// BuildCount constructs a COUNT query.
func (c *MSSQLConnector) BuildCount(_ context.Context, req connector.CountRequest) (string, []any, error) {
	return connector.BuildCountQuery(c, req)
}

// BuildCreateTable constructs the DDL for an uploaded table.
func (c *MSSQLConnector) BuildCreateTable(_ context.Context, table string, cols []model.ColumnMeta) (string, error) {
	return connector.BuildCreate(c, types, table, cols)
}

// BuildDropTable constructs a DROP TABLE statement.
func (c *MSSQLConnector) BuildDropTable(_ context.Context, table string) (string, error) {
	return connector.BuildDrop(c, table)
}

// BindValue converts a cell into a driver argument.
func (c *MSSQLConnector) BindValue(v model.Value) any {
	return v.Interface()
}

// IsSyntaxError reports parser errors raised by SQL Server.
func (c *MSSQLConnector) IsSyntaxError(err error) bool {
	var e mssqldriver.Error
	if errors.As(err, &e) {
		return syntaxErrors[e.Number]
	}
	var pe *mssqldriver.Error
	if errors.As(err, &pe) {
		return syntaxErrors[pe.Number]
	}
	return false
}

// DriverName returns the driver identifier for SQL Server.
func (c *MSSQLConnector) DriverName() string { return "mssql" }

// QuoteIdentifier wraps a SQL identifier in brackets, escaping any
// embedded closing brackets to prevent SQL injection.
func (c *MSSQLConnector) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// ParameterPlaceholder returns a SQL Server-style numbered parameter
// placeholder (e.g., @p1, @p2, @p3).
func (c *MSSQLConnector) ParameterPlaceholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// MaxParams stays under SQL Server's 2100 parameters per request.
func (c *MSSQLConnector) MaxParams() int { return 2000 }

// TransactionalDDL is true: SQL Server DDL participates in transactions.
func (c *MSSQLConnector) TransactionalDDL() bool { return true }
