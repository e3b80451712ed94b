// Package dates converts between the dashboard's display format (dd/mm/yyyy),
// the compact numeric shorthand operators type into filter boxes (ddmm, ddmmyy),
// and time.Time values.
//
// All functions are total: unreadable input yields "" or false, never a panic.
package dates

// dates.go handles the messy reality of dates coming back from the fleet API:
//   - ISO dates and date-times with or without zone offsets
//   - Already-formatted display strings
//   - Unix millisecond timestamps
//   - Operator shorthand like "1503" or "150324"

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is the canonical display format used across the dashboard.
const DisplayLayout = "02/01/2006"

// CenturyPivot splits two-digit years: values up to and including the pivot
// map to 20xx, values above it map to 19xx.
const CenturyPivot = 30

// displayRegex matches a strict dd/mm/yyyy display string.
var displayRegex = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// digitsRegex matches a string made only of ASCII digits.
var digitsRegex = regexp.MustCompile(`^\d+$`)

// now is the clock used for the 4-digit shorthand. Tests replace it.
var now = time.Now

// Layouts tried in order when reading a string as a date.
var (
	dayFirstLayouts = []string{
		"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006",
	}
	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z0700",
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// Parse reads v as a date. It accepts time.Time, *time.Time, Unix millisecond
// integers and floats, and strings in display, day-first, or ISO forms.
// The zero time and unreadable input return false.
func Parse(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case int:
		return fromMillis(float64(val))
	case int64:
		return fromMillis(float64(val))
	case float64:
		return fromMillis(val)
	case string:
		return parseString(val)
	case *string:
		if val == nil {
			return time.Time{}, false
		}
		return parseString(*val)
	default:
		return time.Time{}, false
	}
}

func fromMillis(ms float64) (time.Time, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatForBackend prepares a value for an API field that expects dd/mm/yyyy.
// Display strings pass through unchanged. Strings are only converted when they
// look like machine dates (contain '-' or 'T'); other values are converted when
// they can be read as a date. Anything else yields "".
func FormatForBackend(v any) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if displayRegex.MatchString(s) {
			return s
		}
		if !strings.ContainsAny(s, "-T") {
			return ""
		}
		if t, ok := parseString(s); ok {
			return t.Format(DisplayLayout)
		}
		return ""
	}
	if t, ok := Parse(v); ok {
		return t.Format(DisplayLayout)
	}
	return ""
}

// FormatForComparison converts any date-like value to dd/mm/yyyy, or "" when
// it cannot be read.
func FormatForComparison(v any) string {
	if s, ok := v.(string); ok && displayRegex.MatchString(strings.TrimSpace(s)) {
		return strings.TrimSpace(s)
	}
	if t, ok := Parse(v); ok {
		return t.Format(DisplayLayout)
	}
	return ""
}

// ConvertShortDateFormat expands "ddmmyy" and "ddmm" to dd/mm/yyyy.
// Day must be 1-31 and month 1-12; month lengths are not checked. The 4-digit
// form uses the current year. Any other input is returned unchanged.
func ConvertShortDateFormat(input string) string {
	if !digitsRegex.MatchString(input) || (len(input) != 6 && len(input) != 4) {
		return input
	}

	day, _ := strconv.Atoi(input[0:2])
	month, _ := strconv.Atoi(input[2:4])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return input
	}

	year := now().Year()
	if len(input) == 6 {
		yy, _ := strconv.Atoi(input[4:6])
		year = expandYear(yy)
	}

	return input[0:2] + "/" + input[2:4] + "/" + strconv.Itoa(year)
}

// ConvertShortDateToDate reads a strict 6-digit ddmmyy value. It returns false
// for malformed input and for dates that do not exist, such as 31 February.
func ConvertShortDateToDate(input string) (time.Time, bool) {
	if len(input) != 6 || !digitsRegex.MatchString(input) {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(input[0:2])
	month, _ := strconv.Atoi(input[2:4])
	yy, _ := strconv.Atoi(input[4:6])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year := expandYear(yy)

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes overflow; a rollover means the date does not exist.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

func expandYear(yy int) int {
	if yy <= CenturyPivot {
		return 2000 + yy
	}
	return 1900 + yy
}

// CustomDateFilter is the partial-match predicate used by date columns.
//
// An empty filter matches everything. Otherwise the row value is normalized to
// dd/mm/yyyy and the filter is expanded from shorthand. The row matches on an
// exact or substring match, or when the filter is all digits and matches the
// day (1-2 digits), day+month (4 digits), or day+month+yy (6 digits).
func CustomDateFilter(rowValue any, filterText string) bool {
	filterText = strings.TrimSpace(filterText)
	if filterText == "" {
		return true
	}

	row := FormatForComparison(rowValue)
	if row == "" {
		return false
	}

	filter := ConvertShortDateFormat(filterText)
	if row == filter || strings.Contains(row, filter) {
		return true
	}

	if !digitsRegex.MatchString(filterText) {
		return false
	}

	// row is dd/mm/yyyy
	day, month, year := row[0:2], row[3:5], row[6:10]
	switch len(filterText) {
	case 1, 2:
		return padDay(filterText) == day
	case 4:
		return filterText == day+month
	case 6:
		return filterText == day+month+year[2:]
	}
	return false
}

func padDay(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
