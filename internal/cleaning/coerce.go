package cleaning

import (
	"strconv"
	"strings"
)

// ParseNumeric coerces a raw cell to a float. It tolerates currency symbols,
// thousands separators, percent signs and accounting-style parentheses for
// negatives. The second return is false for missing or non-coercible input.
func ParseNumeric(s string) (float64, bool) {
	if isMissing(s) {
		return 0, false
	}

	clean := strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
		negative = true
	}

	for _, symbol := range []string{"$", "€", "£", "¥", "%"} {
		clean = strings.ReplaceAll(clean, symbol, "")
	}
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, " ", "")

	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// ParseLabel coerces a raw churn label to 0 or 1. Anything else, including
// non-numeric garbage and out-of-range numbers, is null.
func ParseLabel(s string) (int, bool) {
	value, ok := ParseNumeric(s)
	if !ok {
		return 0, false
	}
	switch value {
	case 0:
		return 0, true
	case 1:
		return 1, true
	default:
		return 0, false
	}
}
