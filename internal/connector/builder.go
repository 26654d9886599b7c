package connector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csvdeck/csvdeck/internal/model"
)

// The helpers below hold the SQL that is common to most dialects. Each
// connector calls them with its own quoting and placeholder rules and
// overrides only what differs.

// QuoteList quotes and comma-joins identifiers.
func QuoteList(c Connector, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = c.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func selectHead(c Connector, req SelectRequest) (*strings.Builder, error) {
	if req.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(req.Fields) > 0 {
		b.WriteString(QuoteList(c, req.Fields))
	} else {
		b.WriteString("*")
	}
	b.WriteString(" FROM ")
	b.WriteString(c.QuoteIdentifier(req.Table))
	if req.Filter != "" {
		b.WriteString(" WHERE ")
		b.WriteString(req.Filter)
	}
	if req.Order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(req.Order)
	}
	return &b, nil
}

// BuildLimitOffsetSelect builds a SELECT paginated with LIMIT/OFFSET, as
// used by SQLite, PostgreSQL, MySQL and Snowflake. Limit and offset are
// inlined; they are integers, never caller text.
func BuildLimitOffsetSelect(c Connector, req SelectRequest) (string, []any, error) {
	b, err := selectHead(c, req)
	if err != nil {
		return "", nil, err
	}
	if req.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(req.Limit))
	}
	// OFFSET is only emitted together with LIMIT.
	if req.Limit > 0 && req.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(req.Offset))
	}
	return b.String(), nil, nil
}

// BuildFetchSelect builds a SELECT paginated with the standard
// OFFSET ... ROWS FETCH NEXT ... ROWS ONLY clause (SQL Server, Oracle 12c+).
// SQL Server requires an ORDER BY for it, so one is supplied if missing.
func BuildFetchSelect(c Connector, req SelectRequest) (string, []any, error) {
	if req.Limit > 0 || req.Offset > 0 {
		if req.Order == "" {
			req.Order = "(SELECT NULL)"
		}
	}
	b, err := selectHead(c, req)
	if err != nil {
		return "", nil, err
	}
	if req.Limit > 0 || req.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(req.Offset))
		b.WriteString(" ROWS")
	}
	if req.Limit > 0 {
		b.WriteString(" FETCH NEXT ")
		b.WriteString(strconv.Itoa(req.Limit))
		b.WriteString(" ROWS ONLY")
	}
	return b.String(), nil, nil
}

// BuildValuesInsert builds a multi-row INSERT ... VALUES (...), (...).
func BuildValuesInsert(c Connector, req InsertRequest) (string, []any, error) {
	if err := validateInsert(req); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	args := make([]any, 0, len(req.Rows)*len(req.Columns))

	b.WriteString("INSERT INTO ")
	b.WriteString(c.QuoteIdentifier(req.Table))
	b.WriteString(" (")
	b.WriteString(QuoteList(c, req.Columns))
	b.WriteString(") VALUES ")

	idx := 1
	for r, row := range req.Rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.ParameterPlaceholder(idx))
			idx++
			args = append(args, v)
		}
		b.WriteByte(')')
	}
	return b.String(), args, nil
}

func validateInsert(req InsertRequest) error {
	if req.Table == "" {
		return fmt.Errorf("table name is required")
	}
	if len(req.Columns) == 0 {
		return fmt.Errorf("at least one column is required")
	}
	if len(req.Rows) == 0 {
		return fmt.Errorf("at least one row is required")
	}
	for i, row := range req.Rows {
		if len(row) != len(req.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(req.Columns))
		}
	}
	return nil
}

// BuildCountQuery builds SELECT COUNT(*) or COUNT(DISTINCT col).
func BuildCountQuery(c Connector, req CountRequest) (string, []any, error) {
	if req.Table == "" {
		return "", nil, fmt.Errorf("table name is required")
	}
	var b strings.Builder
	b.WriteString("SELECT COUNT(")
	if req.Distinct != "" {
		b.WriteString("DISTINCT ")
		b.WriteString(c.QuoteIdentifier(req.Distinct))
	} else {
		b.WriteString("*")
	}
	b.WriteString(") FROM ")
	b.WriteString(c.QuoteIdentifier(req.Table))
	if req.Filter != "" {
		b.WriteString(" WHERE ")
		b.WriteString(req.Filter)
	}
	return b.String(), nil, nil
}

// TypeMap gives the column DDL type for each ColumnType, plus the type of the
// hidden ordinal column.
type TypeMap struct {
	Integer string
	Float   string
	Text    string
	Boolean string
	Date    string
	Ordinal string
}

func (m TypeMap) For(t model.ColumnType) (string, error) {
	switch t {
	case model.TypeInteger:
		return m.Integer, nil
	case model.TypeFloat:
		return m.Float, nil
	case model.TypeText:
		return m.Text, nil
	case model.TypeBoolean:
		return m.Boolean, nil
	case model.TypeDate:
		return m.Date, nil
	}
	return "", fmt.Errorf("unsupported column type %q", t)
}

// BuildCreate builds CREATE TABLE with the hidden ordinal primary key first,
// followed by the uploaded columns in order. Uploaded columns are always
// declared nullable; a sampled schema cannot promise otherwise.
func BuildCreate(c Connector, types TypeMap, table string, cols []model.ColumnMeta) (string, error) {
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(c.QuoteIdentifier(table))
	b.WriteString(" (")
	b.WriteString(c.QuoteIdentifier(RowColumn))
	b.WriteString(" ")
	b.WriteString(types.Ordinal)
	b.WriteString(" NOT NULL PRIMARY KEY")
	for _, col := range cols {
		if col.Name == RowColumn {
			return "", fmt.Errorf("column name %q is reserved", RowColumn)
		}
		typ, err := types.For(col.Type)
		if err != nil {
			return "", err
		}
		b.WriteString(", ")
		b.WriteString(c.QuoteIdentifier(col.Name))
		b.WriteString(" ")
		b.WriteString(typ)
	}
	b.WriteString(")")
	return b.String(), nil
}

// BuildDrop builds DROP TABLE for the given table.
func BuildDrop(c Connector, table string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	return "DROP TABLE " + c.QuoteIdentifier(table), nil
}

// BatchRows returns how many rows of n columns fit in one INSERT for c,
// capped at want.
func BatchRows(c Connector, n, want int) int {
	if n <= 0 {
		return want
	}
	limit := c.MaxParams() / n
	if limit < 1 {
		limit = 1
	}
	if want <= 0 || want > limit {
		return limit
	}
	return want
}
