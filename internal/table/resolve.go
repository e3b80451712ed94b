package table

// resolve.go reads values out of arbitrary rows.
//
// Rows are whatever the host fetched: map[string]any from decoded JSON,
// structs (matched by json tag or field name), pointers to either, and
// slices indexed by numeric path segments. Missing paths resolve to nil.

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/fleetdesk/internal/dates"
)

// numericRegex validates a numeric string after separator cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Resolve follows a dot-separated path into row.
func Resolve(row any, path string) any {
	if row == nil || path == "" {
		return nil
	}
	cur := row
	for _, part := range strings.Split(path, ".") {
		cur = resolveStep(cur, part)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func resolveStep(cur any, key string) any {
	if m, ok := cur.(map[string]any); ok {
		return m[key]
	}

	v := reflect.ValueOf(cur)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil
		}
		mv := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil
		}
		return valueOf(mv)

	case reflect.Struct:
		f, ok := structField(v, key)
		if !ok {
			return nil
		}
		return valueOf(f)

	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= v.Len() {
			return nil
		}
		return valueOf(v.Index(i))
	}
	return nil
}

// structField finds an exported field by json tag, then by case-insensitive name.
func structField(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tag := strings.Split(sf.Tag.Get("json"), ",")[0]; tag == key {
			return v.Field(i), true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.IsExported() && strings.EqualFold(sf.Name, key) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// Stringify renders a raw value for text matching and CSV output.
// Dates render as dd/mm/yyyy; nil renders as "".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case time.Time, *time.Time:
		return dates.FormatForComparison(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return Stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// ToNumber coerces a value to float64. Strings may carry thousands
// separators (",") and surrounding spaces.
func ToNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, " ", "")
		if !numericRegex.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case fmt.Stringer:
		return ToNumber(val.String())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return ToNumber(rv.Elem().Interface())
	}
	return 0, false
}

// isNumeric reports whether v is a Go numeric value (not a numeric string).
func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// sameRow compares two rows by reference for maps, pointers and slices, and
// by value for everything comparable.
func sameRow(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice, reflect.Func, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() {
		return a == b
	}
	return false
}

// keyOf returns the identity string of row under dataKey.
func keyOf(row any, dataKey string) (string, bool) {
	v := Resolve(row, dataKey)
	if v == nil {
		return "", false
	}
	return Stringify(v), true
}

// isNilRow reports whether row is nil or a nil pointer or map.
func isNilRow(row any) bool {
	if row == nil {
		return true
	}
	v := reflect.ValueOf(row)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}
