// Package models provides data structures used throughout the sage server.
package models

import (
	"encoding/json"
	"fmt"
)

// Row represents a single result row as an ordered mapping from column name
// to a scalar-or-null value. Column order is preserved as reported by the
// database driver.
type Row struct {
	Columns []string
	Values  map[string]interface{}
}

// NewRow creates a row from an ordered column list and matching values.
func NewRow(columns []string, values []interface{}) Row {
	vals := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		if i < len(values) {
			vals[col] = values[i]
		}
	}
	return Row{Columns: columns, Values: vals}
}

// Value returns the value for a column.
func (r Row) Value(name string) (interface{}, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	return len(r.Columns)
}

// MarshalJSON serializes the row as a JSON object with columns emitted in
// driver order.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, col := range r.Columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", col, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON restores a row from a JSON object. Column order follows Go's
// map iteration and is therefore unspecified; rows crossing the wire back
// into the server are treated as unordered.
func (r *Row) UnmarshalJSON(data []byte) error {
	vals := make(map[string]interface{})
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	cols := make([]string, 0, len(vals))
	for col := range vals {
		cols = append(cols, col)
	}
	r.Columns = cols
	r.Values = vals
	return nil
}

// IsNumeric reports whether a row value is a numeric scalar. Booleans and
// numeric-looking strings are not numeric.
func IsNumeric(v interface{}) bool {
	_, ok := AsFloat(v)
	return ok
}

// AsFloat converts a numeric scalar to float64.
func AsFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
