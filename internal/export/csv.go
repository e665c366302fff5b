package export

import (
	"strings"

	"github.com/sethshoultes/invoice-generator/internal/invoice"
)

// CSV serializes the session's line items in the flat delimited format:
// a Date,Description,Amount header, one row per item and a closing
// SUBTOTAL row. Rows are joined by \n with no trailing newline.
//
// The quoting is fixed: descriptions are always quoted with embedded quotes
// doubled, dates are written verbatim and amounts carry exactly two decimals.
func CSV(snap invoice.Snapshot) string {
	rows := make([]string, 0, len(snap.Items)+2)
	rows = append(rows, "Date,Description,Amount")
	for _, li := range snap.Items {
		rows = append(rows, li.Date+","+quote(li.Description)+","+li.Amount.StringFixed(2))
	}
	rows = append(rows, ",SUBTOTAL,"+snap.Totals.Subtotal.StringFixed(2))
	return strings.Join(rows, "\n")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
