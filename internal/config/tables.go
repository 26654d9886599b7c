package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/csvdeck/csvdeck/internal/model"
)

// tableMetaRow maps 1:1 to the __tables_meta__ columns. The column list is
// stored as a JSON document because it is only ever read back whole.
type tableMetaRow struct {
	Name        string    `db:"name"`
	ColumnsJSON string    `db:"columns_json"`
	RowCount    int64     `db:"row_count"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r tableMetaRow) toModel() (model.TableMeta, error) {
	meta := model.TableMeta{
		Name:      r.Name,
		RowCount:  r.RowCount,
		CreatedAt: r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.ColumnsJSON), &meta.Columns); err != nil {
		return meta, fmt.Errorf("unmarshal columns for %s: %w", r.Name, err)
	}
	for _, c := range meta.Columns {
		if !c.Type.Valid() {
			return meta, fmt.Errorf("table %s: column %s has unknown type %q", r.Name, c.Name, c.Type)
		}
	}
	return meta, nil
}

// SaveTableMeta creates or replaces the catalog entry for a table.
func (s *Store) SaveTableMeta(ctx context.Context, meta model.TableMeta) error {
	cols, err := json.Marshal(meta.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO __tables_meta__ (name, columns_json, row_count, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			columns_json = excluded.columns_json,
			row_count = excluded.row_count,
			created_at = excluded.created_at`

	if _, err := s.db.ExecContext(ctx, q, meta.Name, string(cols), meta.RowCount, meta.CreatedAt); err != nil {
		return fmt.Errorf("save table meta: %w", err)
	}
	return nil
}

// GetTableMeta returns the catalog entry for a table.
func (s *Store) GetTableMeta(ctx context.Context, name string) (*model.TableMeta, error) {
	var row tableMetaRow
	const q = `SELECT name, columns_json, row_count, created_at FROM __tables_meta__ WHERE name = ?`
	if err := s.db.GetContext(ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get table meta: %w", err)
	}
	meta, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// ListTableMeta returns every catalog entry ordered by name.
func (s *Store) ListTableMeta(ctx context.Context) ([]model.TableMeta, error) {
	var rows []tableMetaRow
	const q = `SELECT name, columns_json, row_count, created_at FROM __tables_meta__ ORDER BY name`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list table meta: %w", err)
	}

	metas := make([]model.TableMeta, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// DeleteTableMeta removes the catalog entry for a table.
func (s *Store) DeleteTableMeta(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM __tables_meta__ WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete table meta: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
