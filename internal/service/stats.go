package service

import (
	"context"
	"runtime"
	"time"

	"github.com/csvdeck/csvdeck/internal/audit"
	"github.com/csvdeck/csvdeck/internal/catalog"
	"github.com/csvdeck/csvdeck/internal/model"
)

const (
	recentUploads = 10
	trendDays     = 30
)

// StatsService builds the dashboard summary.
type StatsService struct {
	tables  *catalog.Manager
	audit   *audit.Log
	version string
	started time.Time
}

// NewStatsService returns a StatsService; uptime counts from now.
func NewStatsService(tables *catalog.Manager, log *audit.Log, version string) *StatsService {
	return &StatsService{tables: tables, audit: log, version: version, started: time.Now()}
}

// Stats aggregates table counts, row totals and upload history.
func (s *StatsService) Stats(ctx context.Context) (*model.Stats, error) {
	tables := s.tables.List()
	st := &model.Stats{
		TotalTables: len(tables),
		TableStats:  make([]model.TableStat, 0, len(tables)),
	}
	for _, t := range tables {
		st.TotalRows += t.RowCount
		st.TableStats = append(st.TableStats, model.TableStat{Name: t.Name, Rows: t.RowCount})
	}

	var err error
	if st.TotalFilesUploaded, err = s.audit.CountUploads(ctx); err != nil {
		return nil, err
	}
	if st.RecentUploads, err = s.audit.ListUploads(ctx, recentUploads); err != nil {
		return nil, err
	}
	if st.UploadTrends, err = s.audit.UploadTrends(ctx, trendDays); err != nil {
		return nil, err
	}

	status := "online"
	conn := s.tables.Conn()
	if err := conn.Ping(ctx); err != nil {
		status = "unreachable"
	}
	st.SystemInfo = model.SystemInfo{
		DBType:       conn.DriverName(),
		ServerStatus: status,
		Version:      s.version,
		GoVersion:    runtime.Version(),
		UptimeHours:  float64(int(time.Since(s.started).Hours()*100)) / 100,
	}
	return st, nil
}
