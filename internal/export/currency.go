package export

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatCurrency formats d as US dollars: $1,234.50 or -$5.00.
func FormatCurrency(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	_, cents, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + "$" + humanize.Comma(d.IntPart()) + "." + cents
}
