package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value is a single cell. Type selects which of the payload fields is
// meaningful; Null overrides all of them.
type Value struct {
	Type  ColumnType
	Null  bool
	Int   int64
	Float float64
	Bool  bool
	Str   string
	Time  time.Time
	// Clock is set for date values that carry a time of day.
	Clock bool
}

// NullValue returns a null cell of the given type.
func NullValue(t ColumnType) Value {
	return Value{Type: t, Null: true}
}

// IntValue, FloatValue, TextValue, BoolValue and DateValue build non-null cells.
func IntValue(n int64) Value     { return Value{Type: TypeInteger, Int: n} }
func FloatValue(f float64) Value { return Value{Type: TypeFloat, Float: f} }
func TextValue(s string) Value   { return Value{Type: TypeText, Str: s} }
func BoolValue(b bool) Value     { return Value{Type: TypeBoolean, Bool: b} }

func DateValue(t time.Time) Value {
	return Value{Type: TypeDate, Time: t, Clock: hasClock(t)}
}

func hasClock(t time.Time) bool {
	h, m, s := t.Clock()
	return h != 0 || m != 0 || s != 0 || t.Nanosecond() != 0
}

// Boolean tokens accepted by ParseBool, lowercased.
var (
	trueTokens  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "1": true}
	falseTokens = map[string]bool{"false": true, "f": true, "no": true, "n": true, "0": true}
)

// ParseBool accepts the loose boolean spellings found in CSV exports.
func ParseBool(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case trueTokens[s]:
		return true, true
	case falseTokens[s]:
		return false, true
	}
	return false, false
}

// ParseInteger parses a whole number in base 10.
func ParseInteger(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

// ParseFloat parses a finite decimal number. NaN and infinities are rejected
// so that words like "nan" or "inf" stay text.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// strconv accepts hex floats and underscores; CSV data never means those.
	if strings.ContainsAny(s, "xX_pP") {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
}

// Slash-separated dates are ambiguous; a column reads them one way only.
const (
	monthFirstLayout = "01/02/2006"
	dayFirstLayout   = "02/01/2006"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"02.01.2006 15:04:05",
}

// ParseDate recognizes a calendar date or a timestamp. Slash-separated
// dates are tried month first, then day first.
func ParseDate(s string) (time.Time, bool) {
	if t, ok := ParseDateOrder(s, false); ok {
		return t, true
	}
	return ParseDateOrder(s, true)
}

// ParseDateOrder is ParseDate with slash-separated dates read in one order
// only: DD/MM/YYYY when dayFirst is set, MM/DD/YYYY otherwise.
func ParseDateOrder(s string, dayFirst bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return time.Time{}, false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	slash := monthFirstLayout
	if dayFirst {
		slash = dayFirstLayout
	}
	if t, err := time.Parse(slash, s); err == nil {
		return t, true
	}
	for _, lay := range timestampLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseValue converts raw CSV text into a cell of type t. Blank text is null.
func ParseValue(raw string, t ColumnType) (Value, error) {
	return parseValue(raw, t, ParseDate)
}

// ParseColumnValue is ParseValue for a cell of column c, reading dates in
// the column's day/month order.
func ParseColumnValue(raw string, c ColumnMeta) (Value, error) {
	return parseValue(raw, c.Type, func(s string) (time.Time, bool) {
		return ParseDateOrder(s, c.DayFirst)
	})
}

func parseValue(raw string, t ColumnType, parseDate func(string) (time.Time, bool)) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NullValue(t), nil
	}
	switch t {
	case TypeInteger:
		if n, ok := ParseInteger(s); ok {
			return IntValue(n), nil
		}
	case TypeFloat:
		if f, ok := ParseFloat(s); ok {
			return FloatValue(f), nil
		}
	case TypeBoolean:
		if b, ok := ParseBool(s); ok {
			return BoolValue(b), nil
		}
	case TypeDate:
		if d, ok := parseDate(s); ok {
			return DateValue(d), nil
		}
	case TypeText:
		return TextValue(raw), nil
	default:
		return Value{}, fmt.Errorf("unknown column type %q", t)
	}
	return Value{}, fmt.Errorf("value %q is not a valid %s", raw, t)
}

// Interface returns the Go value bound to SQL parameters: nil, int64,
// float64, bool, string or time.Time.
func (v Value) Interface() any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case TypeInteger:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeBoolean:
		return v.Bool
	case TypeDate:
		return v.Time
	default:
		return v.Str
	}
}

// String renders the cell as CSV text. Floats always carry a decimal point so
// an exported file re-infers as float.
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		s := strconv.FormatFloat(v.Float, 'f', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	case TypeDate:
		if v.Clock {
			return v.Time.Format(time.RFC3339Nano)
		}
		return v.Time.Format("2006-01-02")
	default:
		return v.Str
	}
}

// MarshalJSON encodes the cell as the natural JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	switch v.Type {
	case TypeInteger:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case TypeFloat:
		return json.Marshal(v.Float)
	case TypeBoolean:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.String())
	}
}

// ValueFromDB converts a scanned driver value into a cell of type t. Drivers
// disagree on representations (MySQL returns []byte, SQLite stores booleans
// as integers, Snowflake returns numbers as strings), so every form is
// normalized here.
func ValueFromDB(raw any, t ColumnType) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NullValue(t), nil
	case []byte:
		return fromText(string(x), t)
	case string:
		return fromText(x, t)
	case int64:
		return fromInt(x, t)
	case int32:
		return fromInt(int64(x), t)
	case int:
		return fromInt(int64(x), t)
	case int16:
		return fromInt(int64(x), t)
	case int8:
		return fromInt(int64(x), t)
	case uint64:
		return fromInt(int64(x), t)
	case float64:
		return fromFloat(x, t)
	case float32:
		return fromFloat(float64(x), t)
	case bool:
		switch t {
		case TypeBoolean:
			return BoolValue(x), nil
		case TypeInteger:
			if x {
				return IntValue(1), nil
			}
			return IntValue(0), nil
		}
		return TextValue(strconv.FormatBool(x)), nil
	case time.Time:
		if t == TypeDate {
			return DateValue(x), nil
		}
		return TextValue(x.Format(time.RFC3339Nano)), nil
	default:
		return fromText(fmt.Sprint(x), t)
	}
}

func fromText(s string, t ColumnType) (Value, error) {
	if t == TypeText {
		return TextValue(s), nil
	}
	if t == TypeBoolean {
		// Drivers without a native boolean hand back "1"/"0" or "true"/"false".
		if b, ok := ParseBool(s); ok {
			return BoolValue(b), nil
		}
	}
	if t == TypeInteger {
		// NUMBER columns in Oracle/Snowflake may come back as "42.0".
		if f, ok := ParseFloat(s); ok && f == math.Trunc(f) {
			if _, isInt := ParseInteger(s); !isInt {
				return IntValue(int64(f)), nil
			}
		}
	}
	return ParseValue(s, t)
}

func fromInt(n int64, t ColumnType) (Value, error) {
	switch t {
	case TypeInteger:
		return IntValue(n), nil
	case TypeFloat:
		return FloatValue(float64(n)), nil
	case TypeBoolean:
		return BoolValue(n != 0), nil
	case TypeText:
		return TextValue(strconv.FormatInt(n, 10)), nil
	}
	return Value{}, fmt.Errorf("cannot read integer %d as %s", n, t)
}

func fromFloat(f float64, t ColumnType) (Value, error) {
	switch t {
	case TypeFloat:
		return FloatValue(f), nil
	case TypeInteger:
		return IntValue(int64(f)), nil
	case TypeBoolean:
		return BoolValue(f != 0), nil
	case TypeText:
		return TextValue(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}
	return Value{}, fmt.Errorf("cannot read number %v as %s", f, t)
}

// CleanDBValue prepares an untyped scanned value for JSON output: byte
// slices become strings and times are rendered in RFC 3339.
func CleanDBValue(raw any) any {
	switch x := raw.(type) {
	case []byte:
		return string(x)
	case time.Time:
		if !hasClock(x) {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	default:
		return raw
	}
}
