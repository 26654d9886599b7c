package openapi

import (
	"encoding/json"
	"testing"

	"github.com/csvdeck/csvdeck/internal/model"
)

func TestMapColumnType(t *testing.T) {
	tests := []struct {
		in         model.ColumnType
		wantType   string
		wantFormat string
	}{
		{model.TypeInteger, "integer", "int64"},
		{model.TypeFloat, "number", "double"},
		{model.TypeText, "string", ""},
		{model.TypeBoolean, "boolean", ""},
		{model.TypeDate, "string", "date-time"},
		{"mystery", "string", ""},
	}
	for _, tt := range tests {
		got := MapColumnType(tt.in)
		if got.Type != tt.wantType || got.Format != tt.wantFormat {
			t.Errorf("MapColumnType(%q) = %+v, want {%s %s}", tt.in, got, tt.wantType, tt.wantFormat)
		}
	}
}

func TestGenerate(t *testing.T) {
	tables := []model.TableMeta{{
		Name: "sales",
		Columns: []model.ColumnMeta{
			{Name: "region", Type: model.TypeText},
			{Name: "amount", Type: model.TypeFloat, Nullable: true},
		},
	}}
	doc := Generate(tables, "http://localhost:8080", "1.2.3")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("version = %q", doc.Info.Version)
	}
	for _, p := range []string{"/upload", "/tables", "/query", "/stats", "/history", "/history/queries",
		"/tables/sales", "/data/sales", "/export/sales", "/quality/sales"} {
		if doc.Paths.Find(p) == nil {
			t.Errorf("missing path %s", p)
		}
	}

	row := doc.Components.Schemas["Sales"]
	if row == nil {
		t.Fatal("missing Sales component schema")
	}
	amount := row.Value.Properties["amount"]
	if amount == nil || !amount.Value.Type.Is("number") || !amount.Value.Nullable {
		t.Errorf("amount schema = %+v", amount)
	}
	if _, ok := row.Value.Properties["__row"]; ok {
		t.Error("row schema exposes the ordinal column")
	}

	if _, err := json.Marshal(doc); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestGenerateNoTables(t *testing.T) {
	doc := Generate(nil, "", "dev")
	if len(doc.Servers) != 0 {
		t.Errorf("servers = %v, want none", doc.Servers)
	}
	if doc.Paths.Find("/query") == nil {
		t.Error("static paths missing")
	}
}

func TestSanitizeSchemaName(t *testing.T) {
	if got := sanitizeSchemaName("q1-report"); got != "Q1_report" {
		t.Errorf("got %q", got)
	}
}
