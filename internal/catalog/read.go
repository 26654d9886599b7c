package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// GetPage returns one page of rows in file order. Pages are 1-based; a page
// past the end is empty, not an error.
func (m *Manager) GetPage(ctx context.Context, name string, page, size int) (*model.PageResult, error) {
	if page < 1 {
		return nil, model.Errorf(model.KindInvalidPagination, "page must be >= 1, got %d", page)
	}
	if size <= 0 {
		return nil, model.Errorf(model.KindInvalidPagination, "limit must be > 0, got %d", size)
	}
	if size > m.opts.MaxPageSize {
		return nil, model.Errorf(model.KindInvalidPagination, "limit must be <= %d, got %d", m.opts.MaxPageSize, size)
	}

	var result *model.PageResult
	err := m.View(name, func(t *model.TableMeta) error {
		result = &model.PageResult{
			Table:     t.Name,
			Columns:   append([]model.ColumnMeta(nil), t.Columns...),
			Rows:      [][]model.Value{},
			TotalRows: t.RowCount,
			Page:      page,
			Limit:     size,
		}
		skip := int64(page-1) * int64(size)
		if skip >= t.RowCount {
			return nil
		}

		q, args, err := m.conn.BuildSelect(ctx, connector.SelectRequest{
			Table:  t.Name,
			Fields: t.ColumnNames(),
			Order:  m.conn.QuoteIdentifier(connector.RowColumn),
			Limit:  size,
			Offset: int(skip),
		})
		if err != nil {
			return fmt.Errorf("build page query: %w", err)
		}
		return m.scan(ctx, t, q, args, func(row []model.Value) error {
			result.Rows = append(result.Rows, row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Export writes the table as CSV: a header of column names, then every row
// in file order. Floats keep a decimal point and dates use ISO layouts, so
// the output re-uploads to the same schema.
func (m *Manager) Export(ctx context.Context, name string, w io.Writer) error {
	return m.View(name, func(t *model.TableMeta) error {
		q, args, err := m.conn.BuildSelect(ctx, connector.SelectRequest{
			Table:  t.Name,
			Fields: t.ColumnNames(),
			Order:  m.conn.QuoteIdentifier(connector.RowColumn),
		})
		if err != nil {
			return fmt.Errorf("build export query: %w", err)
		}

		cw := csv.NewWriter(w)
		if err := cw.Write(t.ColumnNames()); err != nil {
			return err
		}
		record := make([]string, len(t.Columns))
		err = m.scan(ctx, t, q, args, func(row []model.Value) error {
			for i, v := range row {
				record[i] = v.String()
			}
			return cw.Write(record)
		})
		if err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
}

// scan runs q and converts each result row to typed values in column order.
func (m *Manager) scan(ctx context.Context, t *model.TableMeta, q string, args []any, fn func([]model.Value) error) error {
	rows, err := m.conn.DB().QueryxContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("read %s: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return fmt.Errorf("scan %s: %w", t.Name, err)
		}
		if len(raw) != len(t.Columns) {
			return fmt.Errorf("scan %s: got %d columns, want %d", t.Name, len(raw), len(t.Columns))
		}
		vals := make([]model.Value, len(raw))
		for i, r := range raw {
			v, err := model.ValueFromDB(r, t.Columns[i].Type)
			if err != nil {
				return fmt.Errorf("read %s.%s: %w", t.Name, t.Columns[i].Name, err)
			}
			vals[i] = v
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return rows.Err()
}
