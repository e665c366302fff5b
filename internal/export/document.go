package export

import (
	"errors"
	"strings"

	"github.com/sethshoultes/invoice-generator/internal/invoice"
)

// ErrRendererUnavailable is returned when a document export is requested
// without a renderer.
var ErrRendererUnavailable = errors.New("document renderer unavailable")

// Renderer turns a Document into a printable file.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
}

// Align is the horizontal alignment of a table column.
type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

// Header is the issuer block at the top of the document.
type Header struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	Phone    string `json:"phone"`
}

// Field is a labelled block in the detail grid.
type Field struct {
	Label string   `json:"label"`
	Lines []string `json:"lines"`
}

// Column describes one line item table column.
type Column struct {
	Title string `json:"title"`
	Align Align  `json:"align"`
}

// Table is the line item table. Summary, when set, is printed as a final
// full-width row.
type Table struct {
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary string     `json:"summary,omitempty"`
}

// TotalLine is one row of the totals block.
type TotalLine struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// Document is a render-agnostic description of an invoice.
type Document struct {
	Header      Header      `json:"header"`
	Title       string      `json:"title"`
	SubmittedOn string      `json:"submitted_on"`
	For         string      `json:"for"`
	Period      string      `json:"period,omitempty"`
	Grid        [][]Field   `json:"grid"`
	Table       Table       `json:"table"`
	Totals      []TotalLine `json:"totals"`
	Notes       string      `json:"notes,omitempty"`
}

// BuildDocument describes the session as a Document. It performs no
// rendering.
func BuildDocument(snap invoice.Snapshot) *Document {
	m := snap.Metadata
	doc := &Document{
		Header: Header{
			Name:     m.IssuerName,
			Address1: m.IssuerAddress1,
			Address2: m.IssuerAddress2,
			Phone:    m.IssuerPhone,
		},
		Title:       "Invoice",
		SubmittedOn: "Submitted on " + m.SubmittedDate,
		For:         m.InvoiceFor,
		Grid: [][]Field{
			{
				{Label: "Invoice for", Lines: []string{m.ClientName, m.ClientCompany, m.ClientAddress1, m.ClientAddress2}},
			},
			{
				{Label: "Payable to", Lines: []string{m.PayableTo}},
				{Label: "Project", Lines: []string{m.Project}},
			},
			{
				{Label: "Invoice #", Lines: []string{m.InvoiceNumber}},
				{Label: "Due date", Lines: []string{m.DueDate}},
			},
		},
		Table: buildTable(snap),
		Notes: m.Notes,
	}
	if m.StatementPeriodStart != "" || m.StatementPeriodEnd != "" {
		doc.Period = "Statement period " + m.StatementPeriodStart + " to " + m.StatementPeriodEnd
	}

	doc.Totals = []TotalLine{{Label: "Subtotal", Value: FormatCurrency(snap.Totals.Subtotal)}}
	if snap.Totals.Total != nil {
		doc.Totals = append(doc.Totals,
			TotalLine{Label: "Adjustments", Value: FormatCurrency(snap.Totals.Adjustments)},
			TotalLine{Label: "Total", Value: FormatCurrency(*snap.Totals.Total), Emphasis: true},
		)
	}
	return doc
}

func buildTable(snap invoice.Snapshot) Table {
	var t Table
	if snap.Mode == invoice.ModeQuantity {
		t.Columns = []Column{
			{Title: "Description", Align: AlignLeft},
			{Title: "Qty", Align: AlignCenter},
			{Title: "Unit price", Align: AlignRight},
			{Title: "Total price", Align: AlignRight},
		}
	} else {
		t.Columns = []Column{
			{Title: "Date", Align: AlignLeft},
			{Title: "Description", Align: AlignLeft},
			{Title: "Amount", Align: AlignRight},
		}
	}

	t.Rows = make([][]string, 0, len(snap.Items))
	for _, li := range snap.Items {
		if snap.Mode == invoice.ModeQuantity && li.Quantity != nil && li.UnitPrice != nil {
			t.Rows = append(t.Rows, []string{
				strings.TrimSpace(li.Date + " " + li.Description),
				li.Quantity.String(),
				FormatCurrency(*li.UnitPrice),
				FormatCurrency(li.Amount),
			})
			continue
		}
		t.Rows = append(t.Rows, []string{li.Date, li.Description, FormatCurrency(li.Amount)})
	}
	t.Summary = snap.Metadata.ServicesSummary
	return t
}
