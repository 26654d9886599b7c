package model

import "math"

// ProfileResult holds derived data-quality statistics for one table. It is
// computed on demand and never stored.
type ProfileResult struct {
	Table     string          `json:"table"`
	TotalRows int64           `json:"total_rows"`
	Columns   []ColumnProfile `json:"columns"`
}

// ColumnProfile holds the statistics for one column.
type ColumnProfile struct {
	Name           string     `json:"name"`
	Type           ColumnType `json:"type"`
	NullCount      int64      `json:"null_count"`
	NullPercentage float64    `json:"null_percentage"`
	UniqueCount    int64      `json:"unique_count"`
	Samples        []Value    `json:"samples"`
}

// NullPercentage returns nulls/total as a percentage rounded to two decimal
// places. An empty table reports 0.
func NullPercentage(nulls, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(nulls)/float64(total)*100*100) / 100
}
