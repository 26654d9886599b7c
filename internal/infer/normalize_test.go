package infer

import (
	"strings"
	"testing"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Customer ID", "customer_id"},
		{"  Total ($) ", "total"},
		{"Größe", "gro_e"},
		{"Café-Name", "cafe_name"},
		{"2023 Revenue", "c_2023_revenue"},
		{"select", "select_col"},
		{"ORDER", "order_col"},
		{"__row", "row"},
		{"a--b..c", "a_b_c"},
		{"!!!", ""},
		{"\ufeffid", "id"},
	}
	for _, tt := range tests {
		if got := NormalizeIdentifier(tt.in); got != tt.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdentifierTruncates(t *testing.T) {
	long := strings.Repeat("abc ", 30)
	got := NormalizeIdentifier(long)
	if len(got) > MaxIdentifierLen {
		t.Errorf("got %d bytes, want <= %d", len(got), MaxIdentifierLen)
	}
	if strings.HasSuffix(got, "_") {
		t.Errorf("truncated name ends in underscore: %q", got)
	}
}

func TestNormalizeIdentifierIdempotent(t *testing.T) {
	inputs := []string{"Customer ID", "2023 Revenue", "select", "Café", strings.Repeat("x y ", 40), "a_2"}
	for _, in := range inputs {
		once := NormalizeIdentifier(in)
		if twice := NormalizeIdentifier(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeHeaders(t *testing.T) {
	got := NormalizeHeaders([]string{"Name", "name", "NAME ", "", "Amount", "!!"})
	want := []string{"name", "name_2", "name_3", "column_4", "amount", "column_6"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}

	// A previous result normalizes to itself, so exported tables re-upload
	// with the same columns.
	again := NormalizeHeaders(got)
	if strings.Join(again, ",") != strings.Join(got, ",") {
		t.Errorf("re-normalizing changed names: %v -> %v", got, again)
	}
}

func TestNormalizeHeadersSuffixAvoidsExisting(t *testing.T) {
	got := NormalizeHeaders([]string{"a_2", "a", "a"})
	want := []string{"a_2", "a", "a_3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTableName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sales.csv", "sales"},
		{"Q1 Report.CSV", "q1_report"},
		{"/tmp/uploads/orders.2024.csv", "orders_2024"},
		{`C:\data\Kunden.csv`, "kunden"},
		{"2024.csv", "c_2024"},
		{".csv", "csv"},
	}
	for _, tt := range tests {
		if got := TableName(tt.in); got != tt.want {
			t.Errorf("TableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
