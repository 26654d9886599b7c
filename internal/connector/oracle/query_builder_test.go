package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

func TestBuildSelectDefaultsToRowOrder(t *testing.T) {
	c := &OracleConnector{}
	got, _, err := c.BuildSelect(context.Background(), connector.SelectRequest{
		Table:  "sales",
		Fields: []string{"region", "amount"},
		Limit:  10,
		Offset: 20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `SELECT "region", "amount" FROM "sales" ORDER BY "__row" OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY`
	if got != want {
		t.Errorf("SQL mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildInsertAll(t *testing.T) {
	c := &OracleConnector{}
	got, args, err := c.BuildInsert(context.Background(), connector.InsertRequest{
		Table:   "t",
		Columns: []string{"__row", "a"},
		Rows:    [][]any{{int64(1), "x"}, {int64(2), "y"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `INSERT ALL INTO "t" ("__row", "a") VALUES (:1, :2) INTO "t" ("__row", "a") VALUES (:3, :4) SELECT 1 FROM DUAL`
	if got != want {
		t.Errorf("SQL mismatch\n got: %s\nwant: %s", got, want)
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %d", len(args))
	}

	if _, _, err := c.BuildInsert(context.Background(), connector.InsertRequest{
		Table: "t", Columns: []string{"a"}, Rows: [][]any{{1, 2}},
	}); err == nil {
		t.Error("expected error for ragged row")
	}
}

func TestBuildCreateAndDrop(t *testing.T) {
	c := &OracleConnector{}
	got, err := c.BuildCreateTable(context.Background(), "t", []model.ColumnMeta{
		{Name: "ok", Type: model.TypeBoolean},
		{Name: "note", Type: model.TypeText},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `CREATE TABLE "t" ("__row" NUMBER(19) NOT NULL PRIMARY KEY, "ok" NUMBER(1), "note" NVARCHAR2(2000))`
	if got != want {
		t.Errorf("SQL mismatch\n got: %s\nwant: %s", got, want)
	}

	drop, _ := c.BuildDropTable(context.Background(), "t")
	if drop != `DROP TABLE "t" PURGE` {
		t.Errorf("got %s", drop)
	}
}

func TestBindAndErrors(t *testing.T) {
	c := &OracleConnector{}
	if got := c.BindValue(model.BoolValue(true)); got != int64(1) {
		t.Errorf("true bound as %v", got)
	}
	if got := c.BindValue(model.NullValue(model.TypeBoolean)); got != nil {
		t.Errorf("null bound as %v", got)
	}
	if !c.IsSyntaxError(errors.New("ORA-00933: SQL command not properly ended")) {
		t.Error("ORA-00933 should be a syntax error")
	}
	if c.IsSyntaxError(errors.New("ORA-00942: table or view does not exist")) {
		t.Error("ORA-00942 is not a syntax error")
	}
	if got := connector.BatchRows(c, 10, 500); got != 100 {
		t.Errorf("BatchRows = %d, want 100", got)
	}
}
