package core

// convert.go coerces untyped input (import cells, JSON values, form posts)
// into the Go-native value of a field's kind.
//
// These functions handle the messy reality of user-provided data:
//   - Multiple date formats (ISO, day-first, spelled months)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, oui/non, true/false, 1/0)
//   - Excel formula prefixes (="value") and stray quotes
//
// Empty input coerces to nil so the caller decides whether NULL is acceptable.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Day-first layouts come before month-first ones: the stock sheets are French.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
	}
)

// Coerce converts v to the Go-native value for f.Kind.
// Empty strings and nil coerce to nil. Decimals are quantized to f.Scale.
// Sensitive values are taken verbatim.
func Coerce(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		if !f.Sensitive {
			s = CleanCell(s)
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if f.Normalizer != nil {
			s = f.Normalizer(s)
		}
		v = s
	}

	switch f.Kind {
	case KindString:
		return toString(v), nil
	case KindEnum:
		return toEnum(f, v)
	case KindInteger, KindForeignKey:
		return ToInt64(v)
	case KindDecimal:
		d, err := ToDecimal(v)
		if err != nil {
			return nil, err
		}
		return Quantize(d, f.Scale), nil
	case KindDate:
		return ToDate(v)
	case KindDateTime:
		return ToDateTime(v)
	case KindBool:
		return ToBool(v)
	case KindJSON:
		return ToJSON(v)
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupportedField, f.Kind)
	}
}

// Quantize rounds d to scale decimal places, half away from zero
// (10.005 -> 10.01, -10.005 -> -10.01).
func Quantize(d decimal.Decimal, scale int) decimal.Decimal {
	return d.Round(int32(scale))
}

// ToDecimal parses numbers in the formats found in spreadsheets:
// currency symbols, thousands separators and accounting negatives "(1.50)".
func ToDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, fmt.Errorf("invalid number format")
		}
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("invalid number format: %T", v)
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\u20ac", "") // Euro
	s = strings.ReplaceAll(s, "\u00a3", "") // Pound
	s = strings.ReplaceAll(s, "\u00a0", "") // NBSP thousands separator
	s = strings.TrimSpace(s)

	s, err := resolveSeparators(s)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("invalid number format")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid number format")
	}
	return d, nil
}

var (
	commaThousands = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)
	pointThousands = regexp.MustCompile(`^[+-]?\d{1,3}(\.\d{3})*,\d+$`)
)

// resolveSeparators turns commas into thousands separators or a decimal
// point. "1,234.56" and "1,234,567" group thousands, "1.234,56" and "12,5"
// use a decimal comma. A lone comma before three or more digits ("1,234")
// reads both ways and is rejected.
func resolveSeparators(s string) (string, error) {
	comma := strings.LastIndex(s, ",")
	if comma < 0 {
		return s, nil
	}
	commas := strings.Count(s, ",")
	decimals := len(s) - comma - 1

	switch {
	case commaThousands.MatchString(s) && (commas > 1 || strings.Contains(s, ".")):
		return strings.ReplaceAll(s, ",", ""), nil
	case pointThousands.MatchString(s) && strings.Contains(s, "."):
		return strings.ReplaceAll(s[:comma], ".", "") + "." + s[comma+1:], nil
	case commas == 1 && !strings.Contains(s, ".") && decimals >= 1 && decimals <= 2:
		return s[:comma] + "." + s[comma+1:], nil
	}
	return "", fmt.Errorf("ambiguous number %q: use a point for decimals", s)
}

// decimalCommaToPoint reads s with a comma as the decimal point, as in files
// exported with a ';' delimiter. Points and spaces before the comma become
// thousands separators. Anything else is left for ToDecimal.
func decimalCommaToPoint(s string) string {
	comma := strings.Index(s, ",")
	if comma < 0 || strings.Count(s, ",") != 1 || strings.Contains(s[comma:], ".") {
		return s
	}
	r := strings.NewReplacer(".", "", " ", "", "\u00a0", "", ",", ".")
	return r.Replace(s)
}

// ToInt64 accepts integers, integral floats ("3.0" from spreadsheets) and
// numeric strings.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("invalid integer: %v", n)
		}
		return int64(n), nil
	case json.Number:
		return parseInt(n.String())
	case decimal.Decimal:
		if !n.IsInteger() {
			return 0, fmt.Errorf("invalid integer: %s", n)
		}
		return n.IntPart(), nil
	case string:
		return parseInt(n)
	default:
		return 0, fmt.Errorf("invalid integer: %T", v)
	}
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !commaThousands.MatchString(s) {
			return 0, fmt.Errorf("invalid integer: %q", s)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("invalid integer: %q", s)
	}
	return d.IntPart(), nil
}

// ToDate parses a calendar date; the result is midnight UTC.
func ToDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return truncateDate(t), nil
	case string:
		return parseDate(t)
	default:
		return time.Time{}, fmt.Errorf("invalid date format: %T", v)
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	// Spreadsheet cells sometimes carry a midnight timestamp
	if t, err := parseDateTime(s); err == nil {
		return truncateDate(t), nil
	}

	return time.Time{}, fmt.Errorf("invalid date format (use YYYY-MM-DD or DD/MM/YYYY)")
}

// ToDateTime parses a timestamp. Date-only input means midnight UTC.
func ToDateTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		if ts, err := parseDateTime(t); err == nil {
			return ts, nil
		}
		if d, err := parseDate(t); err == nil {
			return d, nil
		}
		return time.Time{}, fmt.Errorf("invalid date format (use YYYY-MM-DDTHH:MM:SS)")
	default:
		return time.Time{}, fmt.Errorf("invalid date format: %T", v)
	}
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToBool accepts various representations: true/false, yes/no, oui/non, t/f, y/n, 1/0.
func ToBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "t", "yes", "y", "oui", "o", "on", "1":
			return true, nil
		case "false", "f", "no", "n", "non", "off", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("must be yes/no, true/false, or 1/0")
}

// ToJSON validates and normalizes a JSON value.
func ToJSON(v any) (json.RawMessage, error) {
	switch j := v.(type) {
	case json.RawMessage:
		if !json.Valid(j) {
			return nil, fmt.Errorf("invalid json")
		}
		return j, nil
	case string:
		if !json.Valid([]byte(j)) {
			return nil, fmt.Errorf("invalid json")
		}
		return json.RawMessage(j), nil
	case []byte:
		if !json.Valid(j) {
			return nil, fmt.Errorf("invalid json")
		}
		return json.RawMessage(j), nil
	default:
		b, err := json.Marshal(j)
		if err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return b, nil
	}
}

func toEnum(f Field, v any) (string, error) {
	s := toString(v)
	for _, ev := range f.EnumValues {
		if strings.EqualFold(ev, s) {
			return ev, nil
		}
	}
	return "", fmt.Errorf("invalid enum: value must be one of: %s", strings.Join(f.EnumValues, ", "))
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case decimal.Decimal:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
