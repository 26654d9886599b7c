package model

import (
	"fmt"
	"time"
)

// ColumnType is the closed set of scalar types a CSV column can be inferred as.
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeText    ColumnType = "text"
	TypeBoolean ColumnType = "boolean"
	TypeDate    ColumnType = "date"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeText, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// ParseColumnType converts a persisted type name back into a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	t := ColumnType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown column type %q", s)
	}
	return t, nil
}

// ColumnMeta describes one column of an uploaded table. It is immutable once
// the table has been created.
type ColumnMeta struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
	// DayFirst reads slash-separated dates in a date column as DD/MM/YYYY
	// rather than MM/DD/YYYY.
	DayFirst bool `json:"day_first,omitempty"`
}

// TableMeta is the catalog entry for one uploaded table. Columns are kept in
// physical order.
type TableMeta struct {
	Name      string       `json:"name"`
	Columns   []ColumnMeta `json:"columns"`
	RowCount  int64        `json:"row_count"`
	CreatedAt time.Time    `json:"created_at"`
}

// ColumnNames returns the column names in physical order.
func (t *TableMeta) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *TableMeta) Column(name string) (ColumnMeta, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMeta{}, false
}

// Clone returns a deep copy that callers may keep without holding catalog locks.
func (t *TableMeta) Clone() *TableMeta {
	cp := *t
	cp.Columns = append([]ColumnMeta(nil), t.Columns...)
	return &cp
}
