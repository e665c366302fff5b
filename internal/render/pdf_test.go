package render

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sethshoultes/invoice-generator/internal/export"
)

var _ export.Renderer = (*PDF)(nil)

var _ = Describe("PDF", func() {
	var doc *export.Document

	BeforeEach(func() {
		doc = &export.Document{
			Header:      export.Header{Name: "Acme Services", Address1: "1 Main St", Phone: "555-0100"},
			Title:       "Invoice",
			SubmittedOn: "Submitted on 03/09/2024",
			For:         "January hosting",
			Period:      "Statement period 2024-01-01 to 2024-01-31",
			Grid: [][]export.Field{
				{{Label: "Invoice for", Lines: []string{"Globex", "", "2 Side St"}}},
				{{Label: "Payable to", Lines: []string{"Jane Doe"}}, {Label: "Project", Lines: []string{"Web"}}},
				{{Label: "Invoice #", Lines: []string{"42"}}, {Label: "Due date", Lines: []string{"04/01/2024"}}},
			},
			Table: export.Table{
				Columns: []export.Column{
					{Title: "Description", Align: export.AlignLeft},
					{Title: "Qty", Align: export.AlignCenter},
					{Title: "Unit price", Align: export.AlignRight},
					{Title: "Total price", Align: export.AlignRight},
				},
				Rows:    [][]string{{"01/05/2024 Hosting – Café", "1", "$1,200.00", "$1,200.00"}},
				Summary: "January services",
			},
			Totals: []export.TotalLine{
				{Label: "Subtotal", Value: "$1,200.00"},
				{Label: "Adjustments", Value: "$0.00"},
				{Label: "Total", Value: "$1,200.00", Emphasis: true},
			},
			Notes: "Thank you for your business!",
		}
	})

	It("should produce a PDF file", func() {
		data, err := NewPDF().Render(doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(bytes.HasPrefix(data, []byte("%PDF-"))).To(BeTrue())
	})

	It("should render the flat layout", func() {
		doc.Table = export.Table{
			Columns: []export.Column{
				{Title: "Date", Align: export.AlignLeft},
				{Title: "Description", Align: export.AlignLeft},
				{Title: "Amount", Align: export.AlignRight},
			},
			Rows: [][]string{{"2024-01-05", "Coffee", "$4.50"}},
		}
		doc.Totals = doc.Totals[:1]
		data, err := NewPDF().Render(doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).NotTo(BeEmpty())
	})
})

var _ = Describe("columnWidths", func() {
	It("should fill the content width", func() {
		widths := columnWidths([]export.Column{
			{Align: export.AlignLeft}, {Align: export.AlignCenter}, {Align: export.AlignRight}, {Align: export.AlignRight},
		})
		sum := 0.0
		for _, w := range widths {
			sum += w
		}
		Expect(sum).To(BeNumerically("~", contentW, 0.001))
	})
})
