package store

import (
	"fmt"
	"strconv"
)

// Row is a single table row keyed by column name.
type Row map[string]any

// Clone returns a shallow copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the row's primary key as a string.
func (r Row) ID() string {
	return r.String(KeyColumn)
}

// String reads a text column. Drivers hand back either string or []byte.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case *string:
		if v == nil {
			return ""
		}
		return *v
	default:
		return fmt.Sprint(v)
	}
}

// Int reads an integer column.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	}
	return 0
}

// Bool reads a boolean column. SQLite reports booleans as integers.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Null reports whether the column is absent or NULL.
func (r Row) Null(col string) bool {
	v, ok := r[col]
	return !ok || v == nil
}
