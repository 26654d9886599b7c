package infer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/csvdeck/csvdeck/internal/model"
)

// Schema is the result of sniffing a CSV stream.
type Schema struct {
	// Headers are the raw header fields as they appear in the file.
	Headers []string
	Columns []model.ColumnMeta
	// Sampled is the number of data rows inspected.
	Sampled int64
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // validated per record
	cr.LazyQuotes = true
	return cr
}

func readHeader(cr *csv.Reader) ([]string, error) {
	rec, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.Errorf(model.KindSchemaInference, "CSV is empty")
	}
	if err != nil {
		return nil, model.WrapError(model.KindSchemaInference, err, "malformed CSV header")
	}
	headers := append([]string(nil), rec...)
	headers[0] = strings.TrimPrefix(headers[0], bom)
	if len(headers) == 1 && strings.TrimSpace(headers[0]) == "" {
		return nil, model.Errorf(model.KindSchemaInference, "CSV has no columns")
	}
	return headers, nil
}

// Sniff reads a header and up to sampleRows data records (all of them when
// sampleRows <= 0) and infers the schema.
func Sniff(r io.Reader, sampleRows int) (*Schema, error) {
	cr := newCSVReader(r)
	headers, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	s := NewSniffer(len(headers))
	for sampleRows <= 0 || s.Rows() < int64(sampleRows) {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, model.WrapError(model.KindSchemaInference, err, "malformed CSV at row %d", s.Rows()+1)
		}
		if len(rec) > len(headers) {
			line, _ := cr.FieldPos(0)
			return nil, model.Errorf(model.KindSchemaInference,
				"line %d has %d fields, header has %d", line, len(rec), len(headers))
		}
		s.Observe(rec)
	}
	if s.Rows() == 0 {
		return nil, model.Errorf(model.KindSchemaInference, "CSV has no data rows")
	}

	return &Schema{
		Headers: headers,
		Columns: s.Columns(NormalizeHeaders(headers)),
		Sampled: s.Rows(),
	}, nil
}

// Decoder streams typed rows out of a CSV whose schema is already known.
// It skips the header line itself.
type Decoder struct {
	cr   *csv.Reader
	cols []model.ColumnMeta
	row  int64
}

// NewDecoder consumes the header of r and returns a Decoder for the
// remaining records.
func NewDecoder(r io.Reader, cols []model.ColumnMeta) (*Decoder, error) {
	cr := newCSVReader(r)
	if _, err := readHeader(cr); err != nil {
		return nil, err
	}
	return &Decoder{cr: cr, cols: cols}, nil
}

// Next returns the next row, or io.EOF when the input is exhausted. Values
// that do not parse as their column's type yield an InsertError naming the
// line and column.
func (d *Decoder) Next() ([]model.Value, error) {
	rec, err := d.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, model.WrapError(model.KindInsert, err, "malformed CSV after row %d", d.row)
	}
	d.row++
	line, _ := d.cr.FieldPos(0)
	if len(rec) > len(d.cols) {
		return nil, model.Errorf(model.KindInsert,
			"line %d has %d fields, table has %d columns", line, len(rec), len(d.cols))
	}

	out := make([]model.Value, len(d.cols))
	for i, c := range d.cols {
		raw := ""
		if i < len(rec) {
			raw = rec[i]
		}
		v, err := model.ParseColumnValue(raw, c)
		if err != nil {
			return nil, model.WrapError(model.KindInsert, err,
				"line %d, column %q: value %q is not a valid %s", line, c.Name, raw, c.Type)
		}
		out[i] = v
	}
	return out, nil
}

// Rows returns the number of data rows decoded so far.
func (d *Decoder) Rows() int64 { return d.row }

// ReadAll sniffs a small in-memory CSV in full and decodes every row.
func ReadAll(data string) (*Schema, [][]model.Value, error) {
	sch, err := Sniff(strings.NewReader(data), 0)
	if err != nil {
		return nil, nil, err
	}
	dec, err := NewDecoder(strings.NewReader(data), sch.Columns)
	if err != nil {
		return nil, nil, err
	}
	var rows [][]model.Value
	for {
		row, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return sch, rows, nil
}

// String describes the inferred columns, e.g. "a:integer, b:float?".
func (s *Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		n := fmt.Sprintf("%s:%s", c.Name, c.Type)
		if c.Nullable {
			n += "?"
		}
		parts[i] = n
	}
	return strings.Join(parts, ", ")
}
