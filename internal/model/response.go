package model

import "time"

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// PageResult is one page of a table read in column order.
type PageResult struct {
	Table     string
	Columns   []ColumnMeta
	Rows      [][]Value
	TotalRows int64
	Page      int
	Limit     int
}

// QueryResult is the outcome of an ad hoc statement. Rows hold cleaned driver
// values in Columns order.
type QueryResult struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Took      time.Duration
}

// TableStat is a table name with its row count, as shown on the dashboard.
type TableStat struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// SystemInfo describes the running instance.
type SystemInfo struct {
	DBType       string  `json:"db_type"`
	ServerStatus string  `json:"server_status"`
	Version      string  `json:"version"`
	GoVersion    string  `json:"go_version"`
	UptimeHours  float64 `json:"uptime_hours"`
}

// Stats is the aggregate dashboard view.
type Stats struct {
	TotalTables        int            `json:"total_tables"`
	TotalRows          int64          `json:"total_rows"`
	TotalFilesUploaded int64          `json:"total_files_uploaded"`
	RecentUploads      []UploadRecord `json:"recent_uploads"`
	TableStats         []TableStat    `json:"table_stats"`
	UploadTrends       []UploadTrend  `json:"upload_trends"`
	SystemInfo         SystemInfo     `json:"system_info"`
}
