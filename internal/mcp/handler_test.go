package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/config"
	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/connector/sqlite"
	"github.com/csvdeck/csvdeck/internal/infer"
	"github.com/csvdeck/csvdeck/internal/profile"
	"github.com/csvdeck/csvdeck/internal/query"
)

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() {
		conn.Disconnect()
		store.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tables := catalog.New(conn, store, catalog.Options{}, logger)
	log := audit.New(store)
	exec := query.NewExecutor(tables, log, query.Options{}, logger)

	sch, rows, err := infer.ReadAll("city,pop\nOslo,709\nBergen,\nTromso,77\n")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tables.Create(context.Background(), "cities", sch.Columns, catalog.RowsOf(rows)); err != nil {
		t.Fatal(err)
	}
	return NewMCPServer(exec, profile.New(exec, logger), log, "test", logger)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return tc.Text
}

func TestListAndDescribe(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListTables(ctx, call(nil))
	if err != nil || res.IsError {
		t.Fatalf("list: %v %v", err, res)
	}
	var tables []struct {
		Name     string `json:"name"`
		RowCount int64  `json:"row_count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &tables); err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 || tables[0].Name != "cities" || tables[0].RowCount != 3 {
		t.Errorf("tables = %+v", tables)
	}

	res, _ = s.handleDescribeTable(ctx, call(map[string]any{"table": "cities"}))
	if res.IsError || !strings.Contains(resultText(t, res), `"pop"`) {
		t.Errorf("describe = %s", resultText(t, res))
	}

	res, _ = s.handleDescribeTable(ctx, call(map[string]any{"table": "nope"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "table_not_found") {
		t.Errorf("describe missing = %s", resultText(t, res))
	}

	res, _ = s.handleDescribeTable(ctx, call(nil))
	if !res.IsError {
		t.Error("describe without table should fail")
	}
}

func TestReadRows(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleReadRows(context.Background(), call(map[string]any{"table": "cities", "page": 2, "limit": 2}))
	if err != nil || res.IsError {
		t.Fatalf("read: %v %s", err, resultText(t, res))
	}
	var page struct {
		Rows      []map[string]any `json:"rows"`
		TotalRows int64            `json:"total_rows"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &page); err != nil {
		t.Fatal(err)
	}
	if page.TotalRows != 3 || len(page.Rows) != 1 || page.Rows[0]["city"] != "Tromso" {
		t.Errorf("page = %+v", page)
	}
}

func TestQueryAndHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, _ := s.handleQuery(ctx, call(map[string]any{"query": "SELECT SUM(pop) AS total FROM cities"}))
	if res.IsError || !strings.Contains(resultText(t, res), "786") {
		t.Errorf("query = %s", resultText(t, res))
	}

	res, _ = s.handleQuery(ctx, call(map[string]any{"query": "DELETE FROM cities"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "disallowed_statement") {
		t.Errorf("delete = %s", resultText(t, res))
	}

	res, _ = s.handleQueryHistory(ctx, call(map[string]any{"limit": 10}))
	var hist []map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0]["success"] != true {
		t.Errorf("history = %v", hist)
	}
}

func TestProfileTool(t *testing.T) {
	s := newTestServer(t)
	res, _ := s.handleProfile(context.Background(), call(map[string]any{"table": "cities"}))
	if res.IsError {
		t.Fatalf("profile = %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), `"null_percentage": 33.33`) {
		t.Errorf("profile = %s", resultText(t, res))
	}
}

func TestTablesResource(t *testing.T) {
	s := newTestServer(t)
	contents, err := s.handleTablesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.URI != tablesURI || !strings.Contains(text.Text, "cities") {
		t.Errorf("resource = %+v", text)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi, want int
	}{
		{5, 1, 10, 5},
		{-3, 1, 10, 1},
		{15, 1, 10, 10},
	}
	for _, tt := range tests {
		if got := clamp(tt.val, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Error("ReadOnlyHint should be true")
	}
}
