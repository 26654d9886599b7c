// Package catalog owns the set of uploaded tables: their metadata, their
// physical tables in the connector store, and the locks that order
// creates, reads and deletes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/csvdeck/csvdeck/internal/config"
	"github.com/csvdeck/csvdeck/internal/connector"
	"github.com/csvdeck/csvdeck/internal/model"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultBatchSize   = 500
	DefaultMaxPageSize = 1000
)

// RowSource yields decoded rows in file order. Next returns io.EOF after
// the last row.
type RowSource interface {
	Next() ([]model.Value, error)
}

// Options tunes a Manager.
type Options struct {
	BatchSize   int
	MaxPageSize int
}

// Manager is the table catalog. The coarse lock guards the name map and is
// only held for lookups and reservations; each entry carries its own lock
// held exclusively by create and delete and shared by readers.
type Manager struct {
	conn   connector.Connector
	store  *config.Store
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]*entry
}

type entry struct {
	mu      sync.RWMutex
	meta    *model.TableMeta
	pending bool
}

// New returns an empty Manager. Call Load to pick up tables from a previous
// run.
func New(conn connector.Connector, store *config.Store, opts Options, logger *slog.Logger) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultMaxPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		conn:   conn,
		store:  store,
		opts:   opts,
		logger: logger,
		tables: make(map[string]*entry),
	}
}

// Conn returns the physical store.
func (m *Manager) Conn() connector.Connector { return m.conn }

// MaxPageSize is the largest page GetPage accepts.
func (m *Manager) MaxPageSize() int { return m.opts.MaxPageSize }

// Load rebuilds the catalog from persisted metadata. Entries whose physical
// table no longer exists are discarded.
func (m *Manager) Load(ctx context.Context) error {
	metas, err := m.store.ListTableMeta(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	names, err := m.conn.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[strings.ToLower(n)] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range metas {
		meta := metas[i]
		if !present[strings.ToLower(meta.Name)] {
			m.logger.Warn("discarding catalog entry without physical table", "table", meta.Name)
			if err := m.store.DeleteTableMeta(ctx, meta.Name); err != nil && !errors.Is(err, config.ErrNotFound) {
				return fmt.Errorf("load catalog: %w", err)
			}
			continue
		}
		m.tables[meta.Name] = &entry{meta: &meta}
	}
	m.logger.Debug("catalog loaded", "tables", len(m.tables))
	return nil
}

// List returns snapshots of every published table in lexical order.
func (m *Manager) List() []model.TableMeta {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.tables))
	for _, e := range m.tables {
		if !e.pending {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	out := make([]model.TableMeta, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		if e.meta != nil {
			out = append(out, *e.meta.Clone())
		}
		e.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a snapshot of one table's metadata.
func (m *Manager) Get(name string) (*model.TableMeta, error) {
	var meta *model.TableMeta
	err := m.View(name, func(t *model.TableMeta) error {
		meta = t.Clone()
		return nil
	})
	return meta, err
}

// View runs fn with the table's read lock held. The table cannot be dropped
// while fn runs. fn must not retain t.
func (m *Manager) View(name string, fn func(t *model.TableMeta) error) error {
	e := m.lookup(name)
	if e == nil {
		return model.TableNotFound(name)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.meta == nil {
		return model.TableNotFound(name)
	}
	return fn(e.meta)
}

func (m *Manager) lookup(name string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.tables[name]
	if e == nil || e.pending {
		return nil
	}
	return e
}

// Delete drops the table and its metadata. Upload history is kept.
func (m *Manager) Delete(ctx context.Context, name string) error {
	e := m.lookup(name)
	if e == nil {
		return model.TableNotFound(name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta == nil {
		return model.TableNotFound(name)
	}

	stmt, err := m.conn.BuildDropTable(ctx, name)
	if err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err := m.conn.DB().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}

	// The physical table is gone, so the entry goes too. Metadata left
	// behind is discarded by Load.
	m.mu.Lock()
	delete(m.tables, name)
	m.mu.Unlock()
	e.meta = nil

	if err := m.store.DeleteTableMeta(ctx, name); err != nil && !errors.Is(err, config.ErrNotFound) {
		m.logger.Error("table dropped but its metadata was not removed", "table", name, "error", err)
		return nil
	}
	m.logger.Info("table dropped", "table", name)
	return nil
}
