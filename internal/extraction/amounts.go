package extraction

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount extracts a signed amount from statement text such as
// "₦1,250.00", "(12.50)", "45.00-" or "300.00 DR". Everything except digits,
// sign and decimal point is stripped before parsing.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = true
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(upper, "CR"):
		s = strings.TrimSpace(s[:len(s)-2])
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	s = normalizeDecimalComma(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = !negative
		}
	}
	digits := b.String()
	if digits == "" || strings.Count(digits, ".") > 1 {
		return 0, false
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeDecimalComma rewrites European "1.234,56" and "12,50" so the
// comma becomes the decimal point. Comma thousands separators are left for
// the digit filter to drop.
func normalizeDecimalComma(s string) string {
	lastComma := strings.LastIndex(s, ",")
	if lastComma < 0 {
		return s
	}
	lastDot := strings.LastIndex(s, ".")
	decimals := len(strings.TrimRight(s[lastComma+1:], " "))
	switch {
	case lastDot >= 0 && lastComma > lastDot:
		// "1.234,56"
	case lastDot < 0 && strings.Count(s, ",") == 1 && decimals == 2:
		// "12,50"
	default:
		return s
	}
	s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
	return strings.ReplaceAll(s, ",", "")
}

// UnsignedAmount returns the absolute value of a numeric or textual amount.
func UnsignedAmount(v any) float64 {
	f, _ := NumericValue(v)
	return math.Abs(f)
}

// NumericValue converts a provenance value to a number. Numbers pass
// through; strings go through ParseAmount.
func NumericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case string:
		return ParseAmount(x)
	default:
		return 0, false
	}
}

// roundCents rounds to two decimal places.
func roundCents(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}
