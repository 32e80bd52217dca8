// Package wire converts between domain entities and the flat, field-named
// rows exchanged with the remote data gateway.
//
// Each entity has exactly two pure functions, XToRow and XFromRow. Nothing
// else in the repository knows backend column names, so schema drift is
// contained here.
package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/roach88/crescent/internal/calendar"
)

// Row is one backend record: column name to value.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FieldError reports a row that cannot be converted.
type FieldError struct {
	Table string
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("wire %s.%s: %s", e.Table, e.Field, e.Msg)
}

type reader struct {
	table string
	row   Row
	err   error
}

func (rd *reader) fail(field, format string, args ...any) {
	if rd.err == nil {
		rd.err = &FieldError{Table: rd.table, Field: field, Msg: fmt.Sprintf(format, args...)}
	}
}

func (rd *reader) present(field string, required bool) (any, bool) {
	v, ok := rd.row[field]
	if !ok || v == nil {
		if required {
			rd.fail(field, "missing")
		}
		return nil, false
	}
	return v, true
}

func (rd *reader) str(field string, required bool) string {
	v, ok := rd.present(field, required)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		if required && x == "" {
			rd.fail(field, "empty")
		}
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		// uuid types from database drivers
		return x.String()
	case [16]byte:
		return formatUUID(x)
	}
	rd.fail(field, "want string, got %T", v)
	return ""
}

func (rd *reader) integer(field string, required bool) int {
	v, ok := rd.present(field, required)
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		if x != math.Trunc(x) {
			rd.fail(field, "want integer, got %v", x)
			return 0
		}
		return int(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			rd.fail(field, "want integer, got %q", x)
			return 0
		}
		return int(n)
	}
	rd.fail(field, "want integer, got %T", v)
	return 0
}

func (rd *reader) boolean(field string) bool {
	v, ok := rd.present(field, false)
	if !ok {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	rd.fail(field, "want bool, got %T", v)
	return false
}

func (rd *reader) timestamp(field string, required bool) time.Time {
	v, ok := rd.present(field, required)
	if !ok {
		return time.Time{}
	}
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			rd.fail(field, "bad timestamp %q", x)
			return time.Time{}
		}
		return t.UTC()
	}
	rd.fail(field, "want timestamp, got %T", v)
	return time.Time{}
}

func (rd *reader) date(field string, required bool) calendar.Date {
	v, ok := rd.present(field, required)
	if !ok {
		return calendar.Date{}
	}
	switch x := v.(type) {
	case time.Time:
		return calendar.DateOf(x)
	case string:
		d, err := calendar.ParseDate(x)
		if err != nil {
			rd.fail(field, "%v", err)
			return calendar.Date{}
		}
		return d
	}
	rd.fail(field, "want date, got %T", v)
	return calendar.Date{}
}

func formatUUID(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func timestampValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
