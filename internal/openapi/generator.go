package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/csvdeck/csvdeck/internal/model"
)

// Generate builds the OpenAPI 3.1 document for the HTTP API. The static
// endpoints are always present; each uploaded table additionally gets a row
// schema and typed data/export paths.
func Generate(tables []model.TableMeta, baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "csvdeck API",
			Description: "Upload CSV files, browse them as tables and run read-only SQL.",
			Version:     version,
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": stringProp("Human-readable message."),
				"code":  stringProp("Machine-readable error kind."),
			},
			Required: []string{"error"},
		},
	}

	addStaticPaths(doc)
	for _, t := range tables {
		addTablePaths(doc, t)
	}
	return doc
}

func addStaticPaths(doc *openapi3.T) {
	doc.Paths.Set("/upload", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{"tables"},
		Summary:     "Upload a CSV file",
		Description: "Infers a schema from the file and loads it into a new table named after the file.",
		OperationID: "upload",
		RequestBody: &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
			Required: true,
			Content: openapi3.Content{
				"multipart/form-data": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"file": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "binary"}},
						},
						Required: []string{"file"},
					}},
				},
			},
		}},
		Responses: newResponses("201", "Table created", objectSchema(openapi3.Schemas{
			"table": stringProp(""),
			"rows":  intProp(""),
		})),
	}})

	doc.Paths.Set("/tables", &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{"tables"},
		Summary:     "List tables",
		OperationID: "list_tables",
		Responses: newResponses("200", "Table names in lexical order", objectSchema(openapi3.Schemas{
			"tables": arrayOf(&openapi3.SchemaRef{Value: openapi3.NewStringSchema()}),
		})),
	}})

	doc.Paths.Set("/query", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{"query"},
		Summary:     "Run a read-only SQL statement",
		Description: "Only a single SELECT, WITH, PRAGMA, SHOW, DESCRIBE or EXPLAIN statement is accepted.",
		OperationID: "query",
		RequestBody: &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
			Required: true,
			Content: openapi3.NewContentWithJSONSchema(&openapi3.Schema{
				Type:       &openapi3.Types{"object"},
				Properties: openapi3.Schemas{"query": stringProp("SQL text.")},
				Required:   []string{"query"},
			}),
		}},
		Responses: newResponses("200", "Query result", objectSchema(openapi3.Schemas{
			"columns":   arrayOf(&openapi3.SchemaRef{Value: openapi3.NewStringSchema()}),
			"rows":      arrayOf(&openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}),
			"row_count": intProp(""),
			"truncated": &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()},
			"took_ms":   &openapi3.SchemaRef{Value: openapi3.NewFloat64Schema()},
		})),
	}})

	doc.Paths.Set("/stats", &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{"history"},
		Summary:     "Dashboard statistics",
		OperationID: "stats",
		Responses:   newResponses("200", "Aggregate statistics", objectSchema(nil)),
	}})

	limit := openapi3.NewQueryParameter("limit").
		WithDescription("Maximum number of entries to return.").
		WithSchema(openapi3.NewInt64Schema())
	for path, summary := range map[string]string{
		"/history":         "Upload history, newest first",
		"/history/queries": "Query history, newest first",
	} {
		doc.Paths.Set(path, &openapi3.PathItem{Get: &openapi3.Operation{
			Tags:        []string{"history"},
			Summary:     summary,
			OperationID: "history" + strings.ReplaceAll(strings.TrimPrefix(path, "/history"), "/", "_"),
			Parameters:  openapi3.Parameters{{Value: limit}},
			Responses: newResponses("200", summary, objectSchema(openapi3.Schemas{
				"history": arrayOf(&openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}),
			})),
		}})
	}
}

// addTablePaths generates the per-table paths and the row component schema.
func addTablePaths(doc *openapi3.T, t model.TableMeta) {
	schemaName := sanitizeSchemaName(t.Name)
	doc.Components.Schemas[schemaName] = columnsToSchema(t.Columns)
	rowRef := openapi3.NewSchemaRef("#/components/schemas/"+schemaName, nil)
	tag := t.Name

	doc.Paths.Set("/tables/"+t.Name, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("Describe %s", t.Name),
			OperationID: "describe_" + t.Name,
			Responses:   newResponses("200", "Table metadata", objectSchema(nil)),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("Delete %s", t.Name),
			OperationID: "delete_" + t.Name,
			Responses: newResponses("200", "Table deleted", objectSchema(openapi3.Schemas{
				"message": stringProp(""),
			})),
		},
	})

	doc.Paths.Set("/data/"+t.Name, &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("Read a page of %s", t.Name),
		Description: "Rows are returned in file order.",
		OperationID: "data_" + t.Name,
		Parameters:  pageParameters(),
		Responses: newResponses("200", fmt.Sprintf("One page of %s", t.Name), objectSchema(openapi3.Schemas{
			"columns":    arrayOf(&openapi3.SchemaRef{Value: openapi3.NewStringSchema()}),
			"rows":       arrayOf(rowRef),
			"total_rows": intProp(""),
			"page":       intProp(""),
			"limit":      intProp(""),
		})),
	}})

	csvDesc := fmt.Sprintf("%s as CSV", t.Name)
	export := openapi3.NewResponses()
	export.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &csvDesc,
		Content: openapi3.Content{
			"text/csv": &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}},
		},
	}})
	doc.Paths.Set("/export/"+t.Name, &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("Export %s", t.Name),
		OperationID: "export_" + t.Name,
		Responses:   export,
	}})

	doc.Paths.Set("/quality/"+t.Name, &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("Data quality profile of %s", t.Name),
		OperationID: "quality_" + t.Name,
		Responses:   newResponses("200", "Per-column statistics", objectSchema(nil)),
	}})
}

// columnsToSchema converts table columns to an OpenAPI object schema.
func columnsToSchema(columns []model.ColumnMeta) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, col := range columns {
		m := MapColumnType(col.Type)
		s := &openapi3.Schema{Type: &openapi3.Types{m.Type}, Format: m.Format}
		if col.Nullable {
			s.Nullable = true
		}
		props[col.Name] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
		},
	}
}

func pageParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("page").
				WithDescription("1-based page number.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Rows per page.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	}
}

// newResponses builds a Responses map with a success response and the
// standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()
	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for code, desc := range map[string]string{
		"400": "Bad request",
		"404": "Not found",
		"500": "Internal server error",
	} {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}, Properties: props}}
}

func arrayOf(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: items}}
}

func stringProp(desc string) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema()
	s.Description = desc
	return &openapi3.SchemaRef{Value: s}
}

func intProp(desc string) *openapi3.SchemaRef {
	s := openapi3.NewInt64Schema()
	s.Description = desc
	return &openapi3.SchemaRef{Value: s}
}

// sanitizeSchemaName creates a valid component schema name from a table
// name, e.g. "sales_report" -> "Sales_report".
func sanitizeSchemaName(tableName string) string {
	var b strings.Builder
	for _, r := range capitalize(tableName) {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// capitalize returns a string with its first character uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
