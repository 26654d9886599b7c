// Package profile computes data-quality statistics for uploaded tables.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
	"github.com/csvdeck/csvdeck/internal/query"
)

// SampleSize is the number of non-null example values kept per column.
const SampleSize = 3

// Profiler reads table statistics through the query executor. Its queries
// are not recorded in the query history.
type Profiler struct {
	exec   *query.Executor
	logger *slog.Logger
}

// New returns a Profiler that runs its queries on exec.
func New(exec *query.Executor, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{exec: exec, logger: logger}
}

// Profile computes row, null and distinct counts plus sample values for
// every column of table. The table cannot be dropped while this runs.
func (p *Profiler) Profile(ctx context.Context, table string) (*model.ProfileResult, error) {
	start := time.Now()
	conn := p.exec.Tables().Conn()

	var result *model.ProfileResult
	err := p.exec.Tables().View(table, func(t *model.TableMeta) error {
		countQ, _, err := conn.BuildCount(ctx, connector.CountRequest{Table: t.Name})
		if err != nil {
			return err
		}
		total, err := p.exec.Scalar(ctx, countQ)
		if err != nil {
			return err
		}

		result = &model.ProfileResult{
			Table:     t.Name,
			TotalRows: total,
			Columns:   make([]model.ColumnProfile, 0, len(t.Columns)),
		}
		for _, col := range t.Columns {
			cp, err := p.column(ctx, conn, t.Name, col, total)
			if err != nil {
				return err
			}
			result.Columns = append(result.Columns, *cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("table profiled", "table", table, "columns", len(result.Columns), "duration", time.Since(start))
	return result, nil
}

func (p *Profiler) column(ctx context.Context, conn connector.Connector, table string, col model.ColumnMeta, total int64) (*model.ColumnProfile, error) {
	quoted := conn.QuoteIdentifier(col.Name)
	cp := &model.ColumnProfile{
		Name:    col.Name,
		Type:    col.Type,
		Samples: []model.Value{},
	}

	nullQ, _, err := conn.BuildCount(ctx, connector.CountRequest{Table: table, Filter: quoted + " IS NULL"})
	if err != nil {
		return nil, err
	}
	if cp.NullCount, err = p.exec.Scalar(ctx, nullQ); err != nil {
		return nil, err
	}
	cp.NullPercentage = model.NullPercentage(cp.NullCount, total)

	distinctQ, _, err := conn.BuildCount(ctx, connector.CountRequest{Table: table, Distinct: col.Name})
	if err != nil {
		return nil, err
	}
	if cp.UniqueCount, err = p.exec.Scalar(ctx, distinctQ); err != nil {
		return nil, err
	}

	sampleQ, args, err := conn.BuildSelect(ctx, connector.SelectRequest{
		Table:  table,
		Fields: []string{col.Name},
		Filter: quoted + " IS NOT NULL",
		Order:  conn.QuoteIdentifier(connector.RowColumn),
		Limit:  SampleSize,
	})
	if err != nil {
		return nil, err
	}
	res, err := p.exec.Query(ctx, sampleQ, args, SampleSize)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		v, err := model.ValueFromDB(row[0], col.Type)
		if err != nil {
			return nil, fmt.Errorf("sample %s.%s: %w", table, col.Name, err)
		}
		cp.Samples = append(cp.Samples, v)
	}
	return cp, nil
}
