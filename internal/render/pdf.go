package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/sethshoultes/invoice-generator/internal/export"
)

const (
	pageWidth   = 215.9 // US letter, mm
	marginLeft  = 15.0
	marginRight = 15.0
	contentW    = pageWidth - marginLeft - marginRight
	totalsW     = 90.0
)

// PDF renders invoice documents on US letter pages.
type PDF struct {
	font string
}

// NewPDF creates a PDF renderer using one of the core fonts.
func NewPDF() *PDF {
	return &PDF{font: "Arial"}
}

// Render lays out doc and returns the PDF bytes.
func (p *PDF) Render(doc *export.Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(marginLeft, 15, marginRight)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	p.header(pdf, tr, doc)
	p.grid(pdf, tr, doc.Grid)
	p.table(pdf, tr, doc.Table)
	p.totals(pdf, tr, doc.Totals)

	if doc.Notes != "" {
		pdf.Ln(8)
		pdf.SetFont(p.font, "I", 10)
		pdf.SetTextColor(55, 65, 81)
		pdf.MultiCell(contentW, 5, tr(doc.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDF) header(pdf *gofpdf.Fpdf, tr func(string) string, doc *export.Document) {
	pdf.SetFont(p.font, "B", 18)
	pdf.SetTextColor(37, 99, 235)
	pdf.Cell(0, 9, tr(doc.Header.Name))
	pdf.Ln(9)

	pdf.SetFont(p.font, "", 10)
	pdf.SetTextColor(55, 65, 81)
	for _, line := range []string{doc.Header.Address1, doc.Header.Address2, doc.Header.Phone} {
		if line == "" {
			continue
		}
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(6)

	pdf.SetFont(p.font, "B", 28)
	pdf.SetTextColor(30, 58, 95)
	pdf.Cell(0, 12, tr(doc.Title))
	pdf.Ln(12)

	pdf.SetFont(p.font, "B", 10)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(contentW/2, 6, tr(doc.SubmittedOn), "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	if doc.For != "" {
		pdf.CellFormat(contentW/2, 6, tr("For: "+doc.For), "", 0, "R", false, 0, "")
	}
	pdf.Ln(6)
	if doc.Period != "" {
		pdf.SetFont(p.font, "", 9)
		pdf.SetTextColor(107, 114, 128)
		pdf.Cell(0, 5, tr(doc.Period))
		pdf.Ln(5)
	}
	pdf.Ln(6)
}

func (p *PDF) grid(pdf *gofpdf.Fpdf, tr func(string) string, grid [][]export.Field) {
	if len(grid) == 0 {
		return
	}
	colW := contentW / float64(len(grid))
	top := pdf.GetY()
	bottom := top
	for i, column := range grid {
		x := marginLeft + float64(i)*colW
		y := top
		for _, field := range column {
			pdf.SetXY(x, y)
			pdf.SetFont(p.font, "B", 10)
			pdf.SetTextColor(0, 0, 0)
			pdf.CellFormat(colW, 5, tr(field.Label), "", 0, "L", false, 0, "")
			y += 5
			pdf.SetFont(p.font, "", 10)
			for _, line := range field.Lines {
				if line == "" {
					continue
				}
				pdf.SetXY(x, y)
				pdf.CellFormat(colW, 5, tr(line), "", 0, "L", false, 0, "")
				y += 5
			}
			y += 3
		}
		if y > bottom {
			bottom = y
		}
	}
	pdf.SetXY(marginLeft, bottom+4)
}

// columnWidths gives the first column whatever the fixed-width columns leave.
func columnWidths(cols []export.Column) []float64 {
	widths := make([]float64, len(cols))
	if len(cols) == 0 {
		return widths
	}
	fixed := 0.0
	for i := 1; i < len(cols); i++ {
		widths[i] = 30
		if cols[i].Align == export.AlignCenter {
			widths[i] = 18
		}
		fixed += widths[i]
	}
	if len(cols) == 3 {
		// Date, Description, Amount
		widths[0] = 28
		widths[1] = contentW - widths[0] - widths[2]
		return widths
	}
	widths[0] = contentW - fixed
	return widths
}

func (p *PDF) table(pdf *gofpdf.Fpdf, tr func(string) string, t export.Table) {
	widths := columnWidths(t.Columns)

	pdf.SetFont(p.font, "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(30, 58, 95)
	pdf.SetLineWidth(0.5)
	for i, col := range t.Columns {
		pdf.CellFormat(widths[i], 7, tr(col.Title), "B", 0, string(col.Align), false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(p.font, "", 10)
	pdf.SetDrawColor(229, 231, 235)
	pdf.SetLineWidth(0.2)
	for _, row := range t.Rows {
		for i, value := range row {
			if i >= len(widths) {
				break
			}
			pdf.CellFormat(widths[i], 7, tr(value), "B", 0, string(t.Columns[i].Align), false, 0, "")
		}
		pdf.Ln(-1)
	}
	if t.Summary != "" {
		pdf.MultiCell(contentW, 6, tr(t.Summary), "B", "L", false)
	}
	pdf.Ln(6)
}

func (p *PDF) totals(pdf *gofpdf.Fpdf, tr func(string) string, lines []export.TotalLine) {
	pdf.SetDrawColor(30, 58, 95)
	pdf.SetLineWidth(0.5)
	y := pdf.GetY()
	pdf.Line(marginLeft, y, marginLeft+contentW, y)
	pdf.Ln(3)

	x := marginLeft + contentW - totalsW
	for _, line := range lines {
		pdf.SetX(x)
		if line.Emphasis {
			pdf.SetFont(p.font, "B", 12)
			pdf.SetTextColor(37, 99, 235)
			pdf.CellFormat(totalsW/2, 10, tr(line.Label), "", 0, "L", false, 0, "")
			pdf.SetFont(p.font, "B", 18)
			pdf.SetTextColor(219, 39, 119)
			pdf.CellFormat(totalsW/2, 10, tr(line.Value), "", 0, "R", false, 0, "")
			pdf.Ln(10)
			continue
		}
		pdf.SetFont(p.font, "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(totalsW/2, 6, tr(line.Label), "", 0, "L", false, 0, "")
		pdf.SetFont(p.font, "B", 10)
		pdf.CellFormat(totalsW/2, 6, tr(line.Value), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
}
