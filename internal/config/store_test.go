package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csvdeck/csvdeck/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("") // in-memory
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTableMetaCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := model.TableMeta{
		Name: "sales",
		Columns: []model.ColumnMeta{
			{Name: "id", Type: model.TypeInteger},
			{Name: "amount", Type: model.TypeFloat, Nullable: true},
			{Name: "region", Type: model.TypeText},
		},
		RowCount: 42,
	}
	if err := s.SaveTableMeta(ctx, meta); err != nil {
		t.Fatalf("SaveTableMeta: %v", err)
	}

	got, err := s.GetTableMeta(ctx, "sales")
	if err != nil {
		t.Fatalf("GetTableMeta: %v", err)
	}
	if got.RowCount != 42 {
		t.Errorf("got row count %d, want 42", got.RowCount)
	}
	if len(got.Columns) != 3 {
		t.Fatalf("got %d columns, want 3", len(got.Columns))
	}
	if got.Columns[1].Name != "amount" || got.Columns[1].Type != model.TypeFloat || !got.Columns[1].Nullable {
		t.Errorf("column order or type not preserved: %+v", got.Columns[1])
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	if err := s.SaveTableMeta(ctx, model.TableMeta{Name: "alpha", Columns: []model.ColumnMeta{{Name: "x", Type: model.TypeText}}}); err != nil {
		t.Fatalf("SaveTableMeta alpha: %v", err)
	}
	list, err := s.ListTableMeta(ctx)
	if err != nil {
		t.Fatalf("ListTableMeta: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "sales" {
		t.Errorf("expected [alpha sales], got %+v", list)
	}

	if err := s.DeleteTableMeta(ctx, "sales"); err != nil {
		t.Fatalf("DeleteTableMeta: %v", err)
	}
	if _, err := s.GetTableMeta(ctx, "sales"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteTableMeta(ctx, "sales"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUploadHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		rec := &model.UploadRecord{FileName: name + ".csv", TableName: name, RowsInserted: 10}
		if err := s.InsertUpload(ctx, rec); err != nil {
			t.Fatalf("InsertUpload: %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("expected non-zero ID after insert")
		}
	}

	recs, err := s.ListUploads(ctx, 0)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d uploads, want 3", len(recs))
	}
	if recs[0].TableName != "c" || recs[2].TableName != "a" {
		t.Errorf("expected most recent first, got %s..%s", recs[0].TableName, recs[2].TableName)
	}
	if recs[0].ID <= recs[1].ID || recs[1].ID <= recs[2].ID {
		t.Errorf("ids not monotonically increasing: %d %d %d", recs[2].ID, recs[1].ID, recs[0].ID)
	}

	limited, err := s.ListUploads(ctx, 2)
	if err != nil {
		t.Fatalf("ListUploads(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d uploads with limit 2", len(limited))
	}

	n, err := s.CountUploads(ctx)
	if err != nil {
		t.Fatalf("CountUploads: %v", err)
	}
	if n != 3 {
		t.Errorf("got count %d, want 3", n)
	}
}

func TestListUploadsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	est := time.FixedZone("EST", -5*60*60)

	for i, ts := range []time.Time{
		cutoff.Add(-time.Second),
		cutoff,
		cutoff.Add(90 * time.Minute),
		// 2024-04-30 22:00 in EST is 2024-05-01 03:00 UTC.
		time.Date(2024, 4, 30, 22, 0, 0, 0, est),
		cutoff.AddDate(0, 0, -10),
	} {
		rec := &model.UploadRecord{FileName: "f.csv", TableName: fmt.Sprintf("t%d", i), CreatedAt: ts}
		if err := s.InsertUpload(ctx, rec); err != nil {
			t.Fatalf("InsertUpload: %v", err)
		}
	}

	recs, err := s.ListUploadsSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListUploadsSince: %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.TableName)
	}
	if strings.Join(got, ",") != "t1,t2,t3" {
		t.Errorf("ListUploadsSince = %v, want t1,t2,t3", got)
	}
}

func TestQueryHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok := &model.QueryRecord{QueryText: "SELECT 1", ExecutionTimeMs: 1.5, RowCount: 1, Success: true}
	failed := &model.QueryRecord{QueryText: "SELECT * FROM nope", ExecutionTimeMs: 0.4, Error: "no such table"}
	for _, r := range []*model.QueryRecord{ok, failed} {
		if err := s.InsertQuery(ctx, r); err != nil {
			t.Fatalf("InsertQuery: %v", err)
		}
	}

	recs, err := s.ListQueries(ctx, 50)
	if err != nil {
		t.Fatalf("ListQueries: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d queries, want 2", len(recs))
	}
	if recs[0].QueryText != "SELECT * FROM nope" || recs[0].Success {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if !recs[1].Success || recs[1].RowCount != 1 || recs[1].ExecutionTimeMs != 1.5 {
		t.Errorf("unexpected second record: %+v", recs[1])
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.InsertUpload(ctx, &model.UploadRecord{FileName: "x.csv", TableName: "x", RowsInserted: 1}); err != nil {
		t.Fatalf("InsertUpload: %v", err)
	}
	s.Close()

	if _, err := os.Stat(filepath.Join(dir, StateFile)); err != nil {
		t.Fatalf("state file missing: %v", err)
	}

	s2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	n, err := s2.CountUploads(ctx)
	if err != nil {
		t.Fatalf("CountUploads: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d uploads after reopen, want 1", n)
	}
}

func TestDefaultYAMLConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csvdeck.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("got port %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("got driver %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Query.MaxPageSize != 1000 || cfg.Query.Timeout != "30s" {
		t.Errorf("unexpected query config: %+v", cfg.Query)
	}
}

func TestLoadYAMLConfigExpandsEnv(t *testing.T) {
	t.Setenv("CSVDECK_TEST_DSN", "postgres://u:p@db/csv")
	path := filepath.Join(t.TempDir(), "csvdeck.yaml")
	content := "store:\n  driver: postgres\n  dsn: ${CSVDECK_TEST_DSN}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Store.DSN != "postgres://u:p@db/csv" {
		t.Errorf("got dsn %q", cfg.Store.DSN)
	}
	// Unset keys keep their defaults.
	if cfg.Upload.BatchSize != 500 {
		t.Errorf("got batch size %d, want default 500", cfg.Upload.BatchSize)
	}
}
