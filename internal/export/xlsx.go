package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sethshoultes/invoice-generator/internal/invoice"
)

const (
	itemsSheet   = "items"
	summarySheet = "summary"
)

// sheetWriter writes cells and keeps the first error.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) set(sheet string, col, row int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(sheet, cell, value); err != nil {
		w.err = fmt.Errorf("setting %s!%s: %w", sheet, cell, err)
	}
}

func (w *sheetWriter) width(sheet, col string, width float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetColWidth(sheet, col, col, width); err != nil {
		w.err = fmt.Errorf("sizing %s!%s: %w", sheet, col, err)
	}
}

// XLSX renders the session as a workbook with an items sheet and a summary
// sheet. Amounts are written as numbers so they stay summable.
func XLSX(snap invoice.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return nil, fmt.Errorf("naming items sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("creating summary sheet: %w", err)
	}
	w := &sheetWriter{f: f}

	headers := []string{"Date", "Description", "Amount"}
	if snap.Mode == invoice.ModeQuantity {
		headers = []string{"Date", "Description", "Qty", "Unit price", "Amount"}
	}
	for i, h := range headers {
		w.set(itemsSheet, i+1, 1, h)
	}

	for i, li := range snap.Items {
		values := []any{li.Date, li.Description, li.Amount.InexactFloat64()}
		if snap.Mode == invoice.ModeQuantity && li.Quantity != nil && li.UnitPrice != nil {
			values = []any{li.Date, li.Description, li.Quantity.InexactFloat64(), li.UnitPrice.InexactFloat64(), li.Amount.InexactFloat64()}
		}
		for col, v := range values {
			w.set(itemsSheet, col+1, i+2, v)
		}
	}
	w.width(itemsSheet, "A", 14)
	w.width(itemsSheet, "B", 48)

	m := snap.Metadata
	summary := [][2]any{
		{"Invoice", m.InvoiceNumber},
		{"Invoice date", m.InvoiceDate},
		{"Due date", m.DueDate},
		{"Client", m.ClientName},
		{"Company", m.ClientCompany},
		{"Project", m.Project},
		{"Payable to", m.PayableTo},
		{"Subtotal", snap.Totals.Subtotal.InexactFloat64()},
	}
	if snap.Totals.Total != nil {
		summary = append(summary,
			[2]any{"Adjustments", snap.Totals.Adjustments.InexactFloat64()},
			[2]any{"Total", snap.Totals.Total.InexactFloat64()},
		)
	}
	for i, kv := range summary {
		w.set(summarySheet, 1, i+1, kv[0])
		w.set(summarySheet, 2, i+1, kv[1])
	}
	w.width(summarySheet, "A", 16)
	w.width(summarySheet, "B", 32)
	if w.err != nil {
		return nil, fmt.Errorf("building workbook: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
