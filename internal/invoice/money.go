package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// maxNumberLen bounds the text of a numeric edit.
	maxNumberLen = 32
	// maxScale is the most fractional digits kept from a numeric edit.
	maxScale = 6
)

// MaxMagnitude is the largest absolute value a quantity, price or amount may
// hold. Larger input coerces to zero.
var MaxMagnitude = decimal.New(1, 12)

// Round2 rounds a monetary value to cent precision.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseNumber coerces user input into a decimal. Input that is not a number
// coerces to zero so an in-progress edit is never rejected.
// Currency symbols, thousands separators and surrounding whitespace are ignored.
// Exponent notation and values beyond MaxMagnitude also coerce to zero.
func ParseNumber(value string) decimal.Decimal {
	s := strings.TrimSpace(value)
	if len(s) > maxNumberLen || strings.ContainsAny(s, "eE") {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", "")

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))

	d, err := decimal.NewFromString(s)
	if err != nil || d.Abs().GreaterThan(MaxMagnitude) {
		return decimal.Zero
	}
	if d.Exponent() < -maxScale {
		d = d.Round(maxScale)
	}
	if negative {
		return d.Neg()
	}
	return d
}
