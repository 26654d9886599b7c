package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/infer"
	"github.com/csvdeck/csvdeck/internal/model"
)

// UploadResult describes a completed upload.
type UploadResult struct {
	Table   string             `json:"table"`
	Rows    int64              `json:"rows"`
	Columns []model.ColumnMeta `json:"columns"`
}

// IngestService turns CSV files into tables: infer the schema, create the
// table, stream the rows in, record the upload.
type IngestService struct {
	tables     *catalog.Manager
	audit      *audit.Log
	limiter    *UploadLimiter
	sampleRows int
	logger     *slog.Logger
}

// NewIngestService wires the upload pipeline. sampleRows bounds schema
// inference (0 reads the whole file).
func NewIngestService(tables *catalog.Manager, log *audit.Log, limiter *UploadLimiter, sampleRows int, logger *slog.Logger) *IngestService {
	if limiter == nil {
		limiter = NewUploadLimiter(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		tables:     tables,
		audit:      log,
		limiter:    limiter,
		sampleRows: sampleRows,
		logger:     logger,
	}
}

// Ingest creates a table named after fileName from the CSV in src. src is
// read twice: once to infer the schema and once to load the rows.
func (s *IngestService) Ingest(ctx context.Context, fileName string, src io.ReadSeeker) (*UploadResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	name := infer.TableName(fileName)
	if name == "" {
		return nil, model.Errorf(model.KindSchemaInference, "cannot derive a table name from %q", fileName)
	}

	sch, err := infer.Sniff(src, s.sampleRows)
	if err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	dec, err := infer.NewDecoder(src, sch.Columns)
	if err != nil {
		return nil, err
	}

	n, err := s.tables.Create(ctx, name, sch.Columns, dec)
	if err != nil {
		return nil, err
	}

	rec := &model.UploadRecord{FileName: filepath.Base(fileName), TableName: name, RowsInserted: n}
	if err := s.audit.RecordUpload(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to record upload", "table", name, "error", err)
	}

	meta, err := s.tables.Get(name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("upload complete", "file", rec.FileName, "table", name,
		"rows", n, "schema", sch.String(), "duration", time.Since(start))
	return &UploadResult{Table: name, Rows: n, Columns: meta.Columns}, nil
}
