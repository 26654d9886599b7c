package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/csvdeck/csvdeck/internal/config"
	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/connector/sqlite"
	"github.com/csvdeck/csvdeck/internal/infer"
	"github.com/csvdeck/csvdeck/internal/model"
)

func newTestManager(t *testing.T, opts Options) *Manager {
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
	return New(conn, store, opts, nil)
}

func createFromCSV(t *testing.T, m *Manager, name, data string) int64 {
	t.Helper()
	sch, err := infer.Sniff(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	dec, err := infer.NewDecoder(strings.NewReader(data), sch.Columns)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	n, err := m.Create(context.Background(), name, sch.Columns, dec)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return n
}

func numbersCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,label\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,row%d\n", i, i)
	}
	return b.String()
}

func TestCreateAndGetPage(t *testing.T) {
	m := newTestManager(t, Options{})
	n := createFromCSV(t, m, "people", "a,b,c\n1,2.5,x\n3,,y\n")
	if n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}

	page, err := m.GetPage(context.Background(), "people", 1, 10)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.TotalRows != 2 || len(page.Rows) != 2 {
		t.Fatalf("total=%d rows=%d", page.TotalRows, len(page.Rows))
	}
	wantTypes := []model.ColumnType{model.TypeInteger, model.TypeFloat, model.TypeText}
	for i, c := range page.Columns {
		if c.Type != wantTypes[i] {
			t.Errorf("column %s type = %s, want %s", c.Name, c.Type, wantTypes[i])
		}
	}
	if !page.Columns[1].Nullable || page.Columns[0].Nullable {
		t.Errorf("nullability = %+v", page.Columns)
	}
	if got := page.Rows[1][1]; !got.Null {
		t.Errorf("row 2 b = %v, want null", got)
	}
	if got := page.Rows[0][2].Str; got != "x" {
		t.Errorf("row 1 c = %q", got)
	}
}

func TestPagesCoverAllRowsInOrder(t *testing.T) {
	m := newTestManager(t, Options{BatchSize: 7})
	createFromCSV(t, m, "nums", numbersCSV(53))

	var seen []int64
	for p := 1; ; p++ {
		page, err := m.GetPage(context.Background(), "nums", p, 10)
		if err != nil {
			t.Fatalf("page %d: %v", p, err)
		}
		if len(page.Rows) == 0 {
			break
		}
		for _, r := range page.Rows {
			seen = append(seen, r[0].Int)
		}
	}
	if len(seen) != 53 {
		t.Fatalf("saw %d rows, want 53", len(seen))
	}
	for i, v := range seen {
		if v != int64(i+1) {
			t.Fatalf("row %d = %d, want %d", i, v, i+1)
		}
	}
}

func TestGetPageValidation(t *testing.T) {
	m := newTestManager(t, Options{MaxPageSize: 100})
	createFromCSV(t, m, "t", "a\n1\n")

	for _, tc := range []struct{ page, size int }{{0, 10}, {1, 0}, {1, -1}, {1, 101}} {
		_, err := m.GetPage(context.Background(), "t", tc.page, tc.size)
		if !errors.Is(err, model.ErrInvalidPagination) {
			t.Errorf("page=%d size=%d: err = %v, want InvalidPagination", tc.page, tc.size, err)
		}
	}
	if _, err := m.GetPage(context.Background(), "missing", 1, 10); !errors.Is(err, model.ErrTableNotFound) {
		t.Errorf("missing table: err = %v", err)
	}
	page, err := m.GetPage(context.Background(), "t", 5, 10)
	if err != nil || len(page.Rows) != 0 || page.TotalRows != 1 {
		t.Errorf("page past end: %+v, %v", page, err)
	}
}

func TestCreateRejectsExistingName(t *testing.T) {
	m := newTestManager(t, Options{})
	createFromCSV(t, m, "t", "a\n1\n")

	_, err := m.Create(context.Background(), "t", []model.ColumnMeta{{Name: "a", Type: model.TypeInteger}}, RowsOf(nil))
	if !errors.Is(err, model.ErrTableExists) {
		t.Fatalf("err = %v, want TableAlreadyExists", err)
	}
}

func TestCreateFailureLeavesNothing(t *testing.T) {
	m := newTestManager(t, Options{BatchSize: 2})
	cols := []model.ColumnMeta{{Name: "a", Type: model.TypeInteger}}
	data := "a\n1\n2\n3\nfour\n"
	dec, err := infer.NewDecoder(strings.NewReader(data), cols)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Create(context.Background(), "bad", cols, dec)
	if !errors.Is(err, model.ErrInsert) {
		t.Fatalf("err = %v, want InsertError", err)
	}
	if !strings.Contains(err.Error(), "line 5") {
		t.Errorf("error should name the line: %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("catalog not empty after failure: %v", m.List())
	}
	names, _ := m.Conn().GetTableNames(context.Background())
	if len(names) != 0 {
		t.Errorf("physical tables left behind: %v", names)
	}

	// The name is free again.
	if _, err := m.Create(context.Background(), "bad", cols, RowsOf([][]model.Value{{model.IntValue(1)}})); err != nil {
		t.Fatalf("retry create: %v", err)
	}
}

func TestConcurrentCreateSameName(t *testing.T) {
	m := newTestManager(t, Options{})
	cols := []model.ColumnMeta{{Name: "a", Type: model.TypeInteger}}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		exists  int
		unknown []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows := RowsOf([][]model.Value{{model.IntValue(1)}, {model.IntValue(2)}})
			_, err := m.Create(context.Background(), "race", cols, rows)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, model.ErrTableExists):
				exists++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || exists != workers-1 || len(unknown) > 0 {
		t.Fatalf("wins=%d exists=%d other=%v", wins, exists, unknown)
	}
	meta, err := m.Get("race")
	if err != nil || meta.RowCount != 2 {
		t.Fatalf("Get: %+v, %v", meta, err)
	}
}

func TestListIsLexical(t *testing.T) {
	m := newTestManager(t, Options{})
	for _, n := range []string{"zeta", "alpha", "mid"} {
		createFromCSV(t, m, n, "a\n1\n")
	}
	var names []string
	for _, meta := range m.List() {
		names = append(names, meta.Name)
	}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("List() = %v", names)
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager(t, Options{})
	createFromCSV(t, m, "gone", "a\n1\n")

	if err := m.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.GetPage(context.Background(), "gone", 1, 10); !errors.Is(err, model.ErrTableNotFound) {
		t.Errorf("GetPage after delete: %v", err)
	}
	if err := m.Delete(context.Background(), "gone"); !errors.Is(err, model.ErrTableNotFound) {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := m.store.GetTableMeta(context.Background(), "gone"); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("meta still stored: %v", err)
	}
}

func TestDeleteUnpublishesWhenMetadataRemains(t *testing.T) {
	m := newTestManager(t, Options{})
	createFromCSV(t, m, "gone", "a\n1\n")
	createFromCSV(t, m, "kept", "a\n1\n")

	// Metadata removal fails once the store is closed.
	if err := m.store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if list := m.List(); len(list) != 1 || list[0].Name != "kept" {
		t.Errorf("List() = %+v", list)
	}
	if _, err := m.Get("gone"); !errors.Is(err, model.ErrTableNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if _, err := m.GetPage(context.Background(), "gone", 1, 10); !errors.Is(err, model.ErrTableNotFound) {
		t.Errorf("GetPage after delete: %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	m := newTestManager(t, Options{})
	src := "id,price,ok,day,note\n1,2.0,true,2024-01-02,hello\n2,,false,2024-02-03,\"a,b\"\n"
	createFromCSV(t, m, "src", src)

	var buf bytes.Buffer
	if err := m.Export(context.Background(), "src", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	createFromCSV(t, m, "copy", buf.String())
	a, _ := m.Get("src")
	b, _ := m.Get("copy")
	if len(a.Columns) != len(b.Columns) {
		t.Fatalf("column count %d vs %d", len(a.Columns), len(b.Columns))
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			t.Errorf("column %d: %+v vs %+v", i, a.Columns[i], b.Columns[i])
		}
	}

	pa, _ := m.GetPage(context.Background(), "src", 1, 10)
	pb, _ := m.GetPage(context.Background(), "copy", 1, 10)
	for i := range pa.Rows {
		for j := range pa.Rows[i] {
			if pa.Rows[i][j].String() != pb.Rows[i][j].String() {
				t.Errorf("cell %d,%d: %q vs %q", i, j, pa.Rows[i][j], pb.Rows[i][j])
			}
		}
	}
}

func TestLoadDiscardsVanishedTables(t *testing.T) {
	m := newTestManager(t, Options{})
	createFromCSV(t, m, "kept", "a\n1\n")
	createFromCSV(t, m, "lost", "a\n1\n")

	if _, err := m.Conn().DB().Exec(`DROP TABLE "lost"`); err != nil {
		t.Fatal(err)
	}

	fresh := New(m.conn, m.store, Options{}, nil)
	if err := fresh.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	list := fresh.List()
	if len(list) != 1 || list[0].Name != "kept" {
		t.Fatalf("List() = %+v", list)
	}
	if _, err := m.store.GetTableMeta(context.Background(), "lost"); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("vanished meta kept: %v", err)
	}
}
