package model

import "time"

// UploadRecord is one entry in the upload history. TableName may refer to a
// table that has since been dropped.
type UploadRecord struct {
	ID           int64     `json:"id" db:"id"`
	FileName     string    `json:"file_name" db:"file_name"`
	TableName    string    `json:"table_name" db:"table_name"`
	RowsInserted int64     `json:"rows_inserted" db:"rows_inserted"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// QueryRecord is one entry in the ad hoc query history.
type QueryRecord struct {
	ID              int64     `json:"id" db:"id"`
	QueryText       string    `json:"query_text" db:"query_text"`
	ExecutionTimeMs float64   `json:"execution_time_ms" db:"execution_time_ms"`
	RowCount        int64     `json:"row_count" db:"row_count"`
	Success         bool      `json:"success" db:"success"`
	Error           string    `json:"error,omitempty" db:"error"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// UploadTrend counts uploads on one calendar day (UTC).
type UploadTrend struct {
	Date  string `json:"upload_date"`
	Count int    `json:"count"`
}
