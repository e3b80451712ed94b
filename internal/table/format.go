package table

// format.go renders cell values for display.
//
// Formatting never fails: unreadable numbers and dates, missing paths and
// misbehaving label resolvers all degrade to Placeholder.

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/JonMunkholm/fleetdesk/internal/dates"
)

// NumberFormat is a parsed digits pattern.
type NumberFormat struct {
	MinInteger  int
	MinFraction int
	MaxFraction int
}

// maxDigits bounds every digit count of a NumberFormat.
const maxDigits = 20

// ParseNumberFormat reads "I.m-M" (minimum integer digits, minimum and
// maximum fraction digits) or the short "m.M" form. Unreadable patterns fall
// back to one integer digit and 0-3 fraction digits.
func ParseNumberFormat(pattern string) NumberFormat {
	def := NumberFormat{MinInteger: 1, MinFraction: 0, MaxFraction: 3}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return def
	}

	intPart, fracPart, hasDot := strings.Cut(pattern, ".")
	if !hasDot {
		return def
	}

	nf := def
	if minFrac, maxFrac, isRange := strings.Cut(fracPart, "-"); isRange {
		mi, err1 := strconv.Atoi(intPart)
		mn, err2 := strconv.Atoi(minFrac)
		mx, err3 := strconv.Atoi(maxFrac)
		if err1 != nil || err2 != nil || err3 != nil {
			return def
		}
		nf = NumberFormat{MinInteger: mi, MinFraction: mn, MaxFraction: mx}
	} else {
		mn, err1 := strconv.Atoi(intPart)
		mx, err2 := strconv.Atoi(fracPart)
		if err1 != nil || err2 != nil {
			return def
		}
		nf = NumberFormat{MinInteger: 1, MinFraction: mn, MaxFraction: mx}
	}

	if nf.MinInteger < 0 || nf.MinInteger > maxDigits || nf.MinFraction < 0 || nf.MaxFraction < 0 || nf.MaxFraction > maxDigits {
		return def
	}
	if nf.MinFraction > nf.MaxFraction {
		nf.MaxFraction = nf.MinFraction
	}
	return nf
}

// localeTag parses locale, falling back to DefaultLocale.
func localeTag(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.MustParse(DefaultLocale)
	}
	return tag
}

// FormatNumber renders v with the digits pattern and the locale's separators.
// Halves round away from zero.
func FormatNumber(v float64, nf NumberFormat, locale string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	if p := math.Pow10(nf.MaxFraction); math.Abs(v*p) < 1<<53 {
		v = math.Round(v*p) / p
	}
	if v == 0 {
		v = 0 // drop the sign of -0
	}

	return message.NewPrinter(localeTag(locale)).Sprint(number.Decimal(v,
		number.MinIntegerDigits(max(nf.MinInteger, 1)),
		number.MinFractionDigits(nf.MinFraction),
		number.MaxFractionDigits(nf.MaxFraction),
	))
}

// localeDateLayout is the default date layout when a column sets no format.
func localeDateLayout(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return dates.DisplayLayout
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	switch {
	case base.String() == "en" && region.String() == "US":
		return "01/02/2006"
	case base.String() == "de", base.String() == "ru", base.String() == "pl":
		return "02.01.2006"
	case base.String() == "ja", base.String() == "zh", base.String() == "ko", base.String() == "sv":
		return "2006-01-02"
	default:
		return dates.DisplayLayout
	}
}

// dateTokens maps display tokens to Go layout fragments, longest first.
var dateTokens = strings.NewReplacer(
	"yyyy", "2006",
	"dd", "02",
	"MM", "01",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

// FormatDate renders t with a dd/MM/yyyy-style pattern, or the locale
// default when pattern is empty.
func FormatDate(t time.Time, pattern, locale string) string {
	if pattern == "" {
		return t.Format(localeDateLayout(locale))
	}
	return t.Format(dateTokens.Replace(pattern))
}

// CellValue resolves the column's field in row and formats it by type.
func CellValue(col Column, row any) (out string) {
	defer func() {
		if recover() != nil {
			out = Placeholder
		}
	}()

	raw := Resolve(row, col.Field)
	locale := col.Locale
	if locale == "" {
		locale = DefaultLocale
	}

	switch col.Type {
	case TypeNumber:
		n, ok := ToNumber(raw)
		if !ok {
			return Placeholder
		}
		if col.NumberFormat == "" {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return FormatNumber(n, ParseNumberFormat(col.NumberFormat), locale)

	case TypeDate:
		t, ok := dates.Parse(raw)
		if !ok {
			return Placeholder
		}
		return FormatDate(t, col.DateFormat, locale)

	case TypeDropdown:
		if raw == nil {
			return Placeholder
		}
		if label, ok := optionLabel(col, raw); ok {
			return label
		}
		return Stringify(raw)

	default:
		if raw == nil {
			return Placeholder
		}
		return Stringify(raw)
	}
}

// optionLabel looks up the display label of a dropdown value.
func optionLabel(col Column, raw any) (string, bool) {
	if col.Labels != nil {
		if label, ok := col.Labels.Label(raw); ok {
			return label, true
		}
	}
	want := Stringify(raw)
	for _, opt := range col.Options {
		if sameValue(opt.Value, raw) || Stringify(opt.Value) == want {
			return opt.Label, true
		}
	}
	return "", false
}

// sameValue compares two scalar values, treating numbers of any Go type alike.
func sameValue(a, b any) bool {
	if isNumeric(a) && isNumeric(b) {
		fa, _ := ToNumber(a)
		fb, _ := ToNumber(b)
		return fa == fb
	}
	return Stringify(a) == Stringify(b)
}
