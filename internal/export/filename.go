package export

import (
	"strings"

	"github.com/sethshoultes/invoice-generator/internal/invoice"
)

// Content types of the export formats.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

var unsafeName = strings.NewReplacer("/", "-", `\`, "-", "..", "-")

// CSVFilename is the download name of the flat export.
func CSVFilename(m invoice.Metadata) string {
	return unsafeName.Replace("invoice-items-" + m.InvoiceDate + ".csv")
}

// XLSXFilename is the download name of the workbook export.
func XLSXFilename(m invoice.Metadata) string {
	return unsafeName.Replace("invoice-items-" + m.InvoiceDate + ".xlsx")
}

// PDFFilename is the download name of the rendered document.
func PDFFilename(m invoice.Metadata) string {
	number := m.InvoiceNumber
	if number == "" {
		number = "draft"
	}
	return "invoice-" + unsafeName.Replace(number) + ".pdf"
}
