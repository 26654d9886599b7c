package openapi

import "github.com/csvdeck/csvdeck/internal/model"

// TypeMapping maps a column type to an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean
	Format string // OpenAPI format: int64, double, date-time
}

var columnTypeToOpenAPI = map[model.ColumnType]TypeMapping{
	model.TypeInteger: {"integer", "int64"},
	model.TypeFloat:   {"number", "double"},
	model.TypeText:    {"string", ""},
	model.TypeBoolean: {"boolean", ""},
	model.TypeDate:    {"string", "date-time"},
}

// MapColumnType converts a column type to an OpenAPI type mapping.
// Unknown types fall back to {"string", ""}.
func MapColumnType(t model.ColumnType) TypeMapping {
	if m, ok := columnTypeToOpenAPI[t]; ok {
		return m
	}
	return TypeMapping{"string", ""}
}
