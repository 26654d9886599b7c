// Package query runs read statements against the table store: paginated
// table reads, caller-supplied ad hoc SQL, and the aggregate queries the
// profiler needs. Every statement runs under a server-side timeout.
package query

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxRows = 10000
)

// Options tunes an Executor.
type Options struct {
	Timeout time.Duration
	MaxRows int
}

// Executor runs read queries. Ad hoc queries are classified before they
// reach the database and recorded in the audit log after.
type Executor struct {
	tables *catalog.Manager
	audit  *audit.Log
	opts   Options
	logger *slog.Logger
}

// NewExecutor returns an Executor over the tables in m.
func NewExecutor(m *catalog.Manager, log *audit.Log, opts Options, logger *slog.Logger) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{tables: m, audit: log, opts: opts, logger: logger}
}

// Tables returns the catalog the executor reads from.
func (e *Executor) Tables() *catalog.Manager { return e.tables }

// RunPaginated returns one page of a table. It never takes SQL from the
// caller.
func (e *Executor) RunPaginated(ctx context.Context, table string, page, limit int) (*model.PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	res, err := e.tables.GetPage(ctx, table, page, limit)
	if err != nil {
		if _, ok := model.AsError(err); ok {
			return nil, err
		}
		return nil, e.execError(ctx, err, "failed to read table %q", table)
	}
	return res, nil
}

// RunAdHoc runs one read-only statement. Statements that fail
// classification are logged and returned without touching the database or
// the audit log; everything else produces exactly one QueryRecord.
//
// Statements that pass classification still run in the store's read-only
// mode, so the database itself refuses a write the lexer missed.
func (e *Executor) RunAdHoc(ctx context.Context, text string) (*model.QueryResult, error) {
	d, known := connector.DialectFor(e.tables.Conn().DriverName())
	var err error
	if known {
		err = Classify(text, d)
	} else {
		err = Classify(text)
		d.ReadOnly = connector.ReadOnlyRollback
	}
	if err != nil {
		e.logger.Warn("ad hoc query rejected", "query", clip(text, 200), "error", err)
		return nil, err
	}

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	var res *model.QueryResult
	err = e.readOnly(tctx, d.ReadOnly, func(q sqlx.QueryerContext) error {
		var qerr error
		res, qerr = e.collect(tctx, q, text, nil, e.opts.MaxRows)
		return qerr
	})
	cancel()
	took := time.Since(start)

	rec := &model.QueryRecord{
		QueryText:       text,
		ExecutionTimeMs: float64(took.Microseconds()) / 1000,
		Success:         err == nil,
	}
	if err != nil {
		if me, ok := model.AsError(err); ok {
			rec.Error = me.Message
		} else {
			rec.Error = err.Error()
		}
	} else {
		rec.RowCount = int64(len(res.Rows))
		res.Took = took
	}
	if aerr := e.audit.RecordQuery(context.WithoutCancel(ctx), rec); aerr != nil {
		e.logger.Error("failed to record query", "error", aerr)
	}

	if err != nil {
		e.logger.Info("ad hoc query failed", "query", clip(text, 200), "duration", took, "error", err)
		return nil, err
	}
	e.logger.Debug("ad hoc query", "rows", rec.RowCount, "truncated", res.Truncated, "duration", took)
	return res, nil
}

// Query runs q and returns at most maxRows rows (0 means no cap). The hidden
// ordinal column is removed from the result. Values are cleaned for JSON.
func (e *Executor) Query(ctx context.Context, q string, args []any, maxRows int) (*model.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	return e.collect(ctx, e.tables.Conn().DB(), q, args, maxRows)
}

// readOnly calls fn with a queryer confined to reads by mode. Rows must be
// consumed inside fn.
func (e *Executor) readOnly(ctx context.Context, mode connector.ReadOnlyMode, fn func(sqlx.QueryerContext) error) error {
	db := e.tables.Conn().DB()

	if mode == connector.ReadOnlyQueryOnly {
		conn, err := db.Connx(ctx)
		if err != nil {
			return e.execError(ctx, err, "failed to acquire connection")
		}
		defer conn.Close()
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return e.execError(ctx, err, "failed to enter read-only mode")
		}
		defer func() {
			if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
				// A connection stuck in query_only must not go back to the pool.
				e.logger.Error("failed to leave read-only mode; discarding connection", "error", err)
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
		}()
		return fn(conn)
	}

	var opts *sql.TxOptions
	if mode == connector.ReadOnlyTx {
		opts = &sql.TxOptions{ReadOnly: true}
	}
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return e.execError(ctx, err, "failed to begin read-only transaction")
	}
	defer func() { _ = tx.Rollback() }()
	if mode == connector.ReadOnlySetTx {
		if _, err := tx.ExecContext(ctx, "SET TRANSACTION READ ONLY"); err != nil {
			return e.execError(ctx, err, "failed to begin read-only transaction")
		}
	}
	return fn(tx)
}

// collect runs q on qr and builds the result.
func (e *Executor) collect(ctx context.Context, qr sqlx.QueryerContext, q string, args []any, maxRows int) (*model.QueryResult, error) {
	start := time.Now()
	rows, err := qr.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, e.execError(ctx, err, "query failed")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.execError(ctx, err, "query failed")
	}
	keep := make([]int, 0, len(cols))
	result := &model.QueryResult{Columns: make([]string, 0, len(cols)), Rows: [][]any{}}
	for i, c := range cols {
		if strings.EqualFold(c, connector.RowColumn) {
			continue
		}
		keep = append(keep, i)
		result.Columns = append(result.Columns, c)
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, e.execError(ctx, err, "query failed")
		}
		row := make([]any, len(keep))
		for j, i := range keep {
			row[j] = model.CleanDBValue(raw[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, e.execError(ctx, err, "query failed")
	}

	result.Took = time.Since(start)
	return result, nil
}

// Scalar runs an aggregate query that returns a single integer.
func (e *Executor) Scalar(ctx context.Context, q string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	var n int64
	if err := e.tables.Conn().DB().QueryRowxContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, e.execError(ctx, err, "query failed")
	}
	return n, nil
}

// execError maps a driver error to the engine taxonomy. The first line of
// the database's diagnostic is kept in the message: it describes the
// caller's statement, not the store.
func (e *Executor) execError(ctx context.Context, err error, format string, args ...any) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &model.Error{
			Kind:    model.KindQueryExecution,
			Message: fmt.Sprintf("query exceeded the %s time limit", e.opts.Timeout),
			Err:     err,
			Timeout: true,
		}
	}
	msg := fmt.Sprintf(format, args...)
	if e.tables.Conn().IsSyntaxError(err) {
		return model.WrapError(model.KindQuerySyntax, err, "syntax error: %s", diagnostic(err))
	}
	return model.WrapError(model.KindQueryExecution, err, "%s: %s", msg, diagnostic(err))
}

func diagnostic(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return clip(strings.TrimSpace(s), 300)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
