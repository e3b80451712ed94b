package table

// filter.go holds the row predicates behind the global and column filters.

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/fleetdesk/internal/dates"
)

// matchesGlobal reports whether any of fields contains text, case-insensitively.
// Both the raw value and its formatted cell text are searched.
func (c *Config) matchesGlobal(row any, fields []string, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	for _, field := range fields {
		raw := Resolve(row, field)
		if raw == nil {
			continue
		}
		if strings.Contains(strings.ToLower(Stringify(raw)), needle) {
			return true
		}
		if col, ok := c.Column(field); ok {
			if strings.Contains(strings.ToLower(CellValue(col, row)), needle) {
				return true
			}
		}
	}
	return false
}

// matchesColumn applies one committed column filter to row.
func matchesColumn(col Column, row any, value any) bool {
	raw := Resolve(row, col.Field)

	switch col.effectiveFilterType() {
	case FilterNumber:
		want, ok := ToNumber(value)
		if !ok {
			return false
		}
		got, ok := ToNumber(raw)
		return ok && got == want

	case FilterDropdown:
		if raw == nil {
			return false
		}
		if vals, ok := sliceValues(value); ok {
			for _, v := range vals {
				if sameValue(raw, v) {
					return true
				}
			}
			return false
		}
		return sameValue(raw, value)

	case FilterDate:
		if lo, hi, ok := rangeBounds(value); ok {
			return inDateRange(raw, lo, hi)
		}
		if s, ok := value.(string); ok {
			return dates.CustomDateFilter(raw, s)
		}
		if s, ok := typedDigits(value); ok {
			return dates.CustomDateFilter(raw, s)
		}
		want, ok := dates.Parse(value)
		if !ok {
			return false
		}
		got, ok := dates.Parse(raw)
		return ok && sameDay(got, want)

	case FilterNone:
		return true

	default:
		if raw == nil {
			return false
		}
		needle := strings.ToLower(strings.TrimSpace(Stringify(value)))
		if strings.Contains(strings.ToLower(Stringify(raw)), needle) {
			return true
		}
		return strings.Contains(strings.ToLower(CellValue(col, row)), needle)
	}
}

// typedDigits returns a whole number short enough to be typed date text, such
// as 15 or 150324, as its digits. Longer numbers are epoch milliseconds.
func typedDigits(value any) (string, bool) {
	if !isNumeric(value) {
		return "", false
	}
	n, ok := ToNumber(value)
	if !ok || n < 0 || n >= 1e8 || n != math.Trunc(n) {
		return "", false
	}
	return strconv.FormatFloat(n, 'f', 0, 64), true
}

// isEmptyFilter reports whether value clears a filter.
func isEmptyFilter(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	vals, ok := sliceValues(value)
	if !ok {
		return false
	}
	for _, v := range vals {
		if !isEmptyFilter(v) {
			return false
		}
	}
	return true
}

// sliceValues unpacks any slice or array into []any.
func sliceValues(value any) ([]any, bool) {
	if vals, ok := value.([]any); ok {
		return vals, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// rangeBounds reads a one- or two-element date range. hi is nil while the
// second endpoint has not been chosen.
func rangeBounds(value any) (lo, hi any, ok bool) {
	vals, ok := sliceValues(value)
	if !ok || len(vals) == 0 || len(vals) > 2 {
		return nil, nil, false
	}
	lo = vals[0]
	if len(vals) == 2 {
		hi = vals[1]
	}
	if isEmptyFilter(lo) {
		lo = nil
	}
	if isEmptyFilter(hi) {
		hi = nil
	}
	return lo, hi, true
}

// rangeComplete reports whether both endpoints of a date range are set.
func rangeComplete(value any) bool {
	lo, hi, ok := rangeBounds(value)
	return ok && lo != nil && hi != nil
}

// inDateRange matches raw against an inclusive day range.
func inDateRange(raw, lo, hi any) bool {
	got, ok := dates.Parse(raw)
	if !ok {
		return false
	}
	from, ok1 := dates.Parse(lo)
	to, ok2 := dates.Parse(hi)
	if !ok1 || !ok2 {
		return false
	}
	from, to = dayStart(from), dayStart(to)
	if to.Before(from) {
		from, to = to, from
	}
	d := dayStart(got)
	return !d.Before(from) && !d.After(to)
}

func dayStart(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func sameDay(a, b time.Time) bool {
	return dayStart(a).Equal(dayStart(b))
}
