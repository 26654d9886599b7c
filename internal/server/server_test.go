package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/config"
	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/connector/sqlite"
	"github.com/csvdeck/csvdeck/internal/mcp"
	"github.com/csvdeck/csvdeck/internal/profile"
	"github.com/csvdeck/csvdeck/internal/query"
	"github.com/csvdeck/csvdeck/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type testEnv struct {
	server *Server
}

// newTestEnv wires a full Server over in-memory SQLite.
func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() {
		conn.Disconnect()
		store.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tables := catalog.New(conn, store, catalog.Options{}, logger)
	log := audit.New(store)
	exec := query.NewExecutor(tables, log, query.Options{}, logger)
	prof := profile.New(exec, logger)

	cfg := DefaultConfig()
	cfg.Version = "test"
	cfg.QueryRateLimit = 0
	cfg.UploadRateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	srv := New(cfg, Deps{
		Exec:     exec,
		Ingest:   service.NewIngestService(tables, log, nil, 0, logger),
		Stats:    service.NewStatsService(tables, log, cfg.Version),
		Audit:    log,
		Profiler: prof,
		MCP:      mcp.NewMCPServer(exec, prof, log, cfg.Version, logger),
	}, logger)
	return &testEnv{server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, name, data string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(data))
	mw.Close()
	return e.do(t, "POST", "/upload", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return bytes.NewBuffer(b)
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health and request IDs
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on every response")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, nil)
	assertStatus(t, env.do(t, "GET", "/readyz", nil, nil), http.StatusOK)
}

// ---------------------------------------------------------------------------
// Full workflow: upload -> browse -> query -> profile -> delete
// ---------------------------------------------------------------------------

func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.upload(t, "orders 2024.csv", "id,total,paid\n1,9.5,yes\n2,12,no\n3,,yes\n")
	assertStatus(t, rr, http.StatusCreated)
	var up struct {
		Table string `json:"table"`
		Rows  int64  `json:"rows"`
	}
	decodeJSON(t, rr, &up)
	if up.Table != "orders_2024" || up.Rows != 3 {
		t.Fatalf("upload = %+v", up)
	}

	rr = env.do(t, "GET", "/data/orders_2024?limit=10", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var page struct {
		Columns   []string         `json:"columns"`
		Rows      []map[string]any `json:"rows"`
		TotalRows int64            `json:"total_rows"`
	}
	decodeJSON(t, rr, &page)
	if strings.Join(page.Columns, ",") != "id,total,paid" || page.TotalRows != 3 {
		t.Errorf("page = %+v", page)
	}
	if page.Rows[0]["paid"] != true || page.Rows[2]["total"] != nil {
		t.Errorf("rows = %v", page.Rows)
	}

	rr = env.do(t, "POST", "/query", jsonBody(t, map[string]string{
		"query": "SELECT COUNT(*) AS n FROM orders_2024 WHERE paid",
	}), map[string]string{"Content-Type": "application/json"})
	assertStatus(t, rr, http.StatusOK)
	var qr struct {
		Rows []map[string]any `json:"rows"`
	}
	decodeJSON(t, rr, &qr)
	if len(qr.Rows) != 1 || qr.Rows[0]["n"] != float64(2) {
		t.Errorf("query rows = %v", qr.Rows)
	}

	assertStatus(t, env.do(t, "GET", "/quality/orders_2024", nil, nil), http.StatusOK)
	assertStatus(t, env.do(t, "DELETE", "/tables/orders_2024", nil, nil), http.StatusOK)
	assertStatus(t, env.do(t, "GET", "/data/orders_2024", nil, nil), http.StatusNotFound)

	rr = env.do(t, "GET", "/stats", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var st struct {
		TotalTables        int   `json:"total_tables"`
		TotalFilesUploaded int64 `json:"total_files_uploaded"`
	}
	decodeJSON(t, rr, &st)
	if st.TotalTables != 0 || st.TotalFilesUploaded != 1 {
		t.Errorf("stats = %+v", st)
	}
}

// ---------------------------------------------------------------------------
// OpenAPI and index
// ---------------------------------------------------------------------------

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var spec map[string]any
	decodeJSON(t, rr, &spec)
	if spec["openapi"] != "3.1.0" {
		t.Errorf("openapi version = %v, want 3.1.0", spec["openapi"])
	}
	info := spec["info"].(map[string]any)
	if info["title"] != "csvdeck API" || info["version"] != "test" {
		t.Errorf("info = %v", info)
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "GET", "/", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var body map[string]any
	decodeJSON(t, rr, &body)
	if body["status"] != "online" {
		t.Errorf("index = %v", body)
	}
}

// ---------------------------------------------------------------------------
// CORS, method handling, limits
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "OPTIONS", "/tables", nil, map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "GET",
		"Access-Control-Request-Headers": "Content-Type",
	})
	if rr.Code < 200 || rr.Code >= 300 {
		t.Errorf("CORS preflight status = %d, want 2xx", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, "PATCH", "/tables", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed && rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 405 or 404", rr.Code)
	}
}

func TestQueryRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.QueryRateLimit = 1 })

	send := func() int {
		return env.do(t, "POST", "/query", jsonBody(t, map[string]string{"query": "SELECT 1"}),
			map[string]string{"Content-Type": "application/json"}).Code
	}
	if code := send(); code != http.StatusOK {
		t.Fatalf("first query status = %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second query status = %d, want 429", code)
	}
	// Reads are not limited.
	assertStatus(t, env.do(t, "GET", "/tables", nil, nil), http.StatusOK)
}

func TestUploadBodyLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxBodySize = 1024 })
	rr := env.upload(t, "big.csv", "a\n"+strings.Repeat("12345\n", 1000))
	assertStatus(t, rr, http.StatusRequestEntityTooLarge)
}

// ---------------------------------------------------------------------------
// MCP endpoint
// ---------------------------------------------------------------------------

func TestMCPEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	body := jsonBody(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    "test",
				"version": "1.0",
			},
		},
	})
	rr := env.do(t, "POST", "/mcp", body, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json, text/event-stream",
	})
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"csvdeck"`) {
		t.Errorf("initialize response missing server name: %s", rr.Body.String())
	}
}

func TestMCPDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.EnableMCP = false })
	rr := env.do(t, "POST", "/mcp", jsonBody(t, map[string]any{}), nil)
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 404 or 405", rr.Code)
	}
}
