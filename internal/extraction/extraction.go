package extraction

import (
	"context"

	"github.com/shopspring/decimal"
)

// ToolName is the structured-output tool every extraction service must
// answer through.
const ToolName = "record_invoice_items"

// DateFormat names the date representation requested from the service.
type DateFormat string

const (
	DateISO     DateFormat = "YYYY-MM-DD"
	DateDisplay DateFormat = "MM/DD/YYYY"
)

// RawRecord is one charge as reported by the extraction service.
type RawRecord struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Period is the optional statement period reported alongside the records.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Result is a validated extraction: at least one record, every record
// carrying a date, a description and a positive amount.
type Result struct {
	LineItems       []RawRecord `json:"line_items"`
	StatementPeriod *Period     `json:"statement_period,omitempty"`
}

// Request carries one encoded document to the extraction service.
type Request struct {
	MediaType  string
	Data       string // base64
	DateFormat DateFormat
}

// Service defines the interface for structured extraction backends
type Service interface {
	// Extract sends the document to the external service and returns the
	// validated result. Implementations return one of the error types in
	// errors.go on failure.
	Extract(ctx context.Context, req Request) (*Result, error)
	// Close releases any resources held by the service
	Close() error
}
