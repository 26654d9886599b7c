// Package infer derives a relational schema from CSV text: identifier-safe
// column names and one scalar type per column.
package infer

import (
	"strings"

	"github.com/csvdeck/csvdeck/internal/model"
)

// columnState tracks which types every non-blank value seen so far still
// satisfies.
type columnState struct {
	seen     bool
	nullable bool
	allInt   bool
	allFloat bool
	allBool  bool
	allDate  bool
	// Every date seen so far reads month first (monthFirst) or day first
	// (dayFirst). A column needs one order that fits all of its values.
	monthFirst bool
	dayFirst   bool
}

// Sniffer classifies columns incrementally, one record at a time, so a whole
// file can be inferred in memory proportional to its column count.
type Sniffer struct {
	cols []columnState
	rows int64
}

// NewSniffer returns a Sniffer for n columns.
func NewSniffer(n int) *Sniffer {
	cols := make([]columnState, n)
	for i := range cols {
		cols[i] = columnState{allInt: true, allFloat: true, allBool: true, allDate: true, monthFirst: true, dayFirst: true}
	}
	return &Sniffer{cols: cols}
}

// Observe folds one data record into the per-column state. Missing trailing
// fields count as blanks.
func (s *Sniffer) Observe(record []string) {
	s.rows++
	for i := range s.cols {
		st := &s.cols[i]
		v := ""
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		if v == "" {
			st.nullable = true
			continue
		}
		st.seen = true

		if st.allInt {
			if _, ok := model.ParseInteger(v); !ok {
				st.allInt = false
			}
		}
		if st.allFloat {
			if _, ok := model.ParseFloat(v); !ok {
				st.allFloat = false
			}
		}
		if st.allBool {
			if _, ok := model.ParseBool(v); !ok {
				st.allBool = false
			}
		}
		if st.allDate {
			if _, ok := model.ParseDateOrder(v, false); !ok {
				st.monthFirst = false
			}
			if _, ok := model.ParseDateOrder(v, true); !ok {
				st.dayFirst = false
			}
			if !st.monthFirst && !st.dayFirst {
				st.allDate = false
			}
		}
	}
}

// Rows returns the number of records observed.
func (s *Sniffer) Rows() int64 { return s.rows }

// Columns resolves the final type of each column, strictest first:
// integer, float, boolean, date, then text. A column with no values at all
// is nullable text. Date columns read slash dates month first unless some
// value only fits day first.
func (s *Sniffer) Columns(names []string) []model.ColumnMeta {
	out := make([]model.ColumnMeta, len(s.cols))
	for i, st := range s.cols {
		typ := classify(st)
		out[i] = model.ColumnMeta{
			Name:     names[i],
			Type:     typ,
			Nullable: st.nullable || !st.seen,
			DayFirst: typ == model.TypeDate && !st.monthFirst,
		}
	}
	return out
}

func classify(st columnState) model.ColumnType {
	switch {
	case !st.seen:
		return model.TypeText
	case st.allInt:
		return model.TypeInteger
	case st.allFloat:
		return model.TypeFloat
	case st.allBool:
		return model.TypeBoolean
	case st.allDate:
		return model.TypeDate
	default:
		return model.TypeText
	}
}

// Infer classifies an in-memory header and row set.
func Infer(headers []string, rows [][]string) ([]model.ColumnMeta, error) {
	if len(headers) == 0 {
		return nil, model.Errorf(model.KindSchemaInference, "CSV has no columns")
	}
	if len(rows) == 0 {
		return nil, model.Errorf(model.KindSchemaInference, "CSV has no data rows")
	}
	s := NewSniffer(len(headers))
	for i, r := range rows {
		if len(r) > len(headers) {
			return nil, model.Errorf(model.KindSchemaInference,
				"row %d has %d fields, header has %d", i+1, len(r), len(headers))
		}
		s.Observe(r)
	}
	return s.Columns(NormalizeHeaders(headers)), nil
}
