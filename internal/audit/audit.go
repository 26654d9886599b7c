// Package audit records uploads and ad hoc queries. Records are append-only;
// nothing here updates or deletes them.
package audit

import (
	"context"
	"sort"
	"time"

	"github.com/csvdeck/csvdeck/internal/config"
	"github.com/csvdeck/csvdeck/internal/model"
)

// Log is the append-only history kept in the state store.
type Log struct {
	store *config.Store
	now   func() time.Time
}

// New returns a Log backed by store.
func New(store *config.Store) *Log {
	return &Log{store: store, now: time.Now}
}

// RecordUpload appends rec and fills in its ID and CreatedAt.
func (l *Log) RecordUpload(ctx context.Context, rec *model.UploadRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	return l.store.InsertUpload(ctx, rec)
}

// RecordQuery appends rec and fills in its ID and CreatedAt.
func (l *Log) RecordQuery(ctx context.Context, rec *model.QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	return l.store.InsertQuery(ctx, rec)
}

// ListUploads returns up to limit uploads, newest first. limit <= 0 means all.
func (l *Log) ListUploads(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	return l.store.ListUploads(ctx, limit)
}

// ListQueries returns up to limit queries, newest first. limit <= 0 means all.
func (l *Log) ListQueries(ctx context.Context, limit int) ([]model.QueryRecord, error) {
	return l.store.ListQueries(ctx, limit)
}

// CountUploads returns the number of uploads ever recorded.
func (l *Log) CountUploads(ctx context.Context) (int64, error) {
	return l.store.CountUploads(ctx)
}

// UploadTrends counts uploads per UTC calendar day over the last days days,
// oldest day first. Days without uploads are omitted.
func (l *Log) UploadTrends(ctx context.Context, days int) ([]model.UploadTrend, error) {
	if days <= 0 {
		days = 30
	}
	today := l.now().UTC().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, -(days - 1))

	recs, err := l.store.ListUploadsSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, r := range recs {
		if r.CreatedAt.UTC().Before(cutoff) {
			continue
		}
		counts[r.CreatedAt.UTC().Format("2006-01-02")]++
	}

	trends := make([]model.UploadTrend, 0, len(counts))
	for day, n := range counts {
		trends = append(trends, model.UploadTrend{Date: day, Count: n})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })
	return trends, nil
}
