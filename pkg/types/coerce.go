package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// ParseDecimal parses loosely formatted numeric text as produced by ERP reports:
// surrounding spaces and thousands separators are ignored.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not numeric", raw)
	}
	return d, nil
}

// ToDecimal coerces a scanned SQL value into a decimal. nil becomes zero.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return val, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case uint8:
		return decimal.NewFromInt(int64(val)), nil
	case bool:
		if val {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case []byte:
		return ParseDecimal(string(val))
	case string:
		return ParseDecimal(val)
	default:
		return ParseDecimal(fmt.Sprint(val))
	}
}

// ToString renders a scanned SQL value as trimmed text. nil becomes "".
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case time.Time:
		return FormatDate(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// FormatDate renders the calendar date of t, ignoring the time of day.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ToDate coerces timestamps and date-like strings ("2024-03-01 00:00:00.000") to YYYY-MM-DD.
// Text that is not date-like is returned trimmed so validation can report it.
func ToDate(v any) string {
	if t, ok := v.(time.Time); ok {
		return FormatDate(t)
	}
	s := ToString(v)
	if len(s) >= len(DateLayout) {
		if _, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return s[:len(DateLayout)]
		}
	}
	return s
}
