package config

import (
	"context"
	"fmt"
	"time"

	"github.com/csvdeck/csvdeck/internal/model"
)

// History rows are never updated or deleted. Identifiers come from SQLite
// AUTOINCREMENT and so increase monotonically.

// InsertUpload appends an upload record. ID and CreatedAt are populated.
// CreatedAt is stored in UTC so that ListUploadsSince can compare it.
func (s *Store) InsertUpload(ctx context.Context, rec *model.UploadRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	const q = `INSERT INTO __uploads_meta__ (file_name, table_name, rows_inserted, created_at)
		VALUES (:file_name, :table_name, :rows_inserted, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, rec)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get upload id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListUploads returns upload records most recent first. A limit <= 0 returns
// every record.
func (s *Store) ListUploads(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	recs := []model.UploadRecord{}
	const q = `SELECT id, file_name, table_name, rows_inserted, created_at
		FROM __uploads_meta__ ORDER BY id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &recs, q, limit); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return recs, nil
}

// ListUploadsSince returns the upload records created at or after since,
// oldest first.
func (s *Store) ListUploadsSince(ctx context.Context, since time.Time) ([]model.UploadRecord, error) {
	recs := []model.UploadRecord{}
	const q = `SELECT id, file_name, table_name, rows_inserted, created_at
		FROM __uploads_meta__ WHERE created_at >= ? ORDER BY id`
	if err := s.db.SelectContext(ctx, &recs, q, since.UTC()); err != nil {
		return nil, fmt.Errorf("list uploads since %s: %w", since.Format(time.RFC3339), err)
	}
	return recs, nil
}

// CountUploads returns the total number of upload records.
func (s *Store) CountUploads(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM __uploads_meta__"); err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	return n, nil
}

// InsertQuery appends a query record. ID and CreatedAt are populated.
func (s *Store) InsertQuery(ctx context.Context, rec *model.QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO __query_history__
		(query_text, execution_time_ms, row_count, success, error, created_at)
		VALUES (:query_text, :execution_time_ms, :row_count, :success, :error, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, rec)
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get query id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListQueries returns query records most recent first. A limit <= 0 returns
// every record.
func (s *Store) ListQueries(ctx context.Context, limit int) ([]model.QueryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	recs := []model.QueryRecord{}
	const q = `SELECT id, query_text, execution_time_ms, row_count, success, error, created_at
		FROM __query_history__ ORDER BY id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &recs, q, limit); err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return recs, nil
}
