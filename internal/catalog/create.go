package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// Create makes table name with the given columns and fills it from rows.
// The name is reserved up front so a concurrent create of the same name
// fails with TableAlreadyExists; the table becomes visible only once every
// row is committed and its metadata persisted. On any failure nothing is
// left behind.
func (m *Manager) Create(ctx context.Context, name string, cols []model.ColumnMeta, rows RowSource) (int64, error) {
	if name == "" {
		return 0, model.Errorf(model.KindSchemaInference, "table name is empty")
	}
	if len(cols) == 0 {
		return 0, model.Errorf(model.KindSchemaInference, "table %q has no columns", name)
	}

	e, err := m.reserve(ctx, name)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	start := time.Now()
	meta, err := m.build(ctx, name, cols, rows)
	if err != nil {
		m.mu.Lock()
		delete(m.tables, name)
		m.mu.Unlock()
		m.logger.Warn("table create failed", "table", name, "error", err)
		return 0, err
	}

	e.meta = meta
	m.mu.Lock()
	e.pending = false
	m.mu.Unlock()

	m.logger.Info("table created", "table", name, "columns", len(meta.Columns),
		"rows", meta.RowCount, "duration", time.Since(start))
	return meta.RowCount, nil
}

// reserve claims name in the catalog and returns its entry write-locked.
func (m *Manager) reserve(ctx context.Context, name string) (*entry, error) {
	m.mu.Lock()
	if _, ok := m.tables[name]; ok {
		m.mu.Unlock()
		return nil, model.Errorf(model.KindTableExists, "table %q already exists", name)
	}
	e := &entry{pending: true}
	e.mu.Lock()
	m.tables[name] = e
	m.mu.Unlock()

	// A physical table the catalog does not know about (left over from
	// another tool, or a crash before metadata was saved) also blocks the name.
	names, err := m.conn.GetTableNames(ctx)
	if err == nil {
		for _, n := range names {
			if strings.EqualFold(n, name) {
				err = model.Errorf(model.KindTableExists, "table %q already exists", name)
				break
			}
		}
	} else {
		err = model.WrapError(model.KindInsert, err, "failed to create table %q", name)
	}
	if err != nil {
		m.mu.Lock()
		delete(m.tables, name)
		m.mu.Unlock()
		e.mu.Unlock()
		return nil, err
	}
	return e, nil
}

// build creates the physical table, streams rows into it and saves the
// metadata. The caller holds the entry's write lock.
func (m *Manager) build(ctx context.Context, name string, cols []model.ColumnMeta, rows RowSource) (meta *model.TableMeta, err error) {
	ddl, err := m.conn.BuildCreateTable(ctx, name, cols)
	if err != nil {
		return nil, model.WrapError(model.KindInsert, err, "failed to create table %q", name)
	}

	db := m.conn.DB()
	created := false
	defer func() {
		if err != nil && created {
			m.dropQuietly(name)
		}
	}()

	if !m.conn.TransactionalDDL() {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, model.WrapError(model.KindInsert, err, "failed to create table %q", name)
		}
		created = true
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, model.WrapError(model.KindInsert, err, "failed to create table %q", name)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if m.conn.TransactionalDDL() {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return nil, model.WrapError(model.KindInsert, err, "failed to create table %q", name)
		}
	}

	n, nulls, err := m.insertAll(ctx, tx, name, cols, rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, model.WrapError(model.KindInsert, err, "failed to commit rows into %q", name)
	}
	created = true

	meta = &model.TableMeta{
		Name:      name,
		Columns:   make([]model.ColumnMeta, len(cols)),
		RowCount:  n,
		CreatedAt: time.Now().UTC(),
	}
	for i, c := range cols {
		c.Nullable = nulls[i]
		meta.Columns[i] = c
	}
	if err := m.store.SaveTableMeta(ctx, *meta); err != nil {
		return nil, model.WrapError(model.KindInsert, err, "failed to record table %q", name)
	}
	return meta, nil
}

// insertAll streams rows in batches sized to the connector's parameter
// limit. It returns the row count and, per column, whether any null was
// written.
func (m *Manager) insertAll(ctx context.Context, tx *sqlx.Tx, name string, cols []model.ColumnMeta, rows RowSource) (int64, []bool, error) {
	names := make([]string, 0, len(cols)+1)
	names = append(names, connector.RowColumn)
	for _, c := range cols {
		names = append(names, c.Name)
	}
	size := connector.BatchRows(m.conn, len(names), m.opts.BatchSize)

	nulls := make([]bool, len(cols))
	batch := make([][]any, 0, size)
	var n int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		q, args, err := m.conn.BuildInsert(ctx, connector.InsertRequest{Table: name, Columns: names, Rows: batch})
		if err != nil {
			return model.WrapError(model.KindInsert, err, "failed to insert rows into %q", name)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return model.WrapError(model.KindInsert, err, "failed to insert rows into %q near row %d", name, n)
		}
		batch = batch[:0]
		return nil
	}

	for {
		vals, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if _, ok := model.AsError(err); ok {
				return 0, nil, err
			}
			return 0, nil, model.WrapError(model.KindInsert, err, "failed to read row %d", n+1)
		}
		if len(vals) != len(cols) {
			return 0, nil, model.Errorf(model.KindInsert, "row %d has %d values, table has %d columns", n+1, len(vals), len(cols))
		}

		row := make([]any, len(names))
		row[0] = n
		for i, v := range vals {
			if v.Null {
				nulls[i] = true
			} else if v.Type != cols[i].Type {
				return 0, nil, model.Errorf(model.KindInsert, "row %d, column %q: got %s, want %s", n+1, cols[i].Name, v.Type, cols[i].Type)
			}
			row[i+1] = m.conn.BindValue(v)
		}
		batch = append(batch, row)
		n++

		if len(batch) == size {
			if err := flush(); err != nil {
				return 0, nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, nil, err
	}
	return n, nulls, nil
}

func (m *Manager) dropQuietly(name string) {
	// The request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stmt, err := m.conn.BuildDropTable(ctx, name)
	if err == nil {
		_, err = m.conn.DB().ExecContext(ctx, stmt)
	}
	if err != nil {
		m.logger.Warn("failed to drop partially created table", "table", name, "error", err)
	}
}

// RowsOf adapts an in-memory row slice to a RowSource.
func RowsOf(rows [][]model.Value) RowSource {
	return &sliceSource{rows: rows}
}

type sliceSource struct {
	rows [][]model.Value
	i    int
}

func (s *sliceSource) Next() ([]model.Value, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.i]
	s.i++
	return r, nil
}
