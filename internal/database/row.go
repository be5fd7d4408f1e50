package database

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/koustreak/scout/internal/errs"
)

// ResultSet is a fully materialized query result. Handles never hand out
// live cursors: every statement is read to completion before the
// connection lock is released.
type ResultSet struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows.
func (r *ResultSet) Len() int {
	return len(r.Values)
}

// Maps returns the rows as column-name-keyed maps.
// The returned slice is always non-nil.
func (r *ResultSet) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(r.Values))
	for _, vals := range r.Values {
		row := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			row[col] = vals[i]
		}
		out = append(out, row)
	}
	return out
}

// Scalar returns the first column of the first row, or nil.
func (r *ResultSet) Scalar() any {
	if len(r.Values) == 0 || len(r.Values[0]) == 0 {
		return nil
	}
	return r.Values[0][0]
}

// ScanRows reads all rows from the result set, normalizing driver values
// into JSON-friendly Go types. ScanRows always closes the Rows.
func ScanRows(rows Rows) (*ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	rs := &ResultSet{Columns: columns, Values: make([][]any, 0)}

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		for i := range dest {
			dest[i] = normalize(dest[i])
		}
		rs.Values = append(rs.Values, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return rs, nil
}

// normalize turns text-bearing byte slices into strings (MySQL returns
// most columns as []byte) and renders times in RFC 3339.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		b := make([]byte, len(t))
		copy(b, t)
		return b
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Text renders a normalized column value the way it reads in a result:
// nil is empty, floats drop trailing zeros, bytes are decoded.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(v)
	}
}

// AsInt64 converts a numeric result value, such as a COUNT(*), to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
