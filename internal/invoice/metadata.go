package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

const defaultNotes = "Thank you for your business!"

// Issuer is the static identity printed at the top of every invoice.
type Issuer struct {
	Name      string `json:"name" yaml:"name"`
	Address1  string `json:"address1" yaml:"address1"`
	Address2  string `json:"address2" yaml:"address2"`
	Phone     string `json:"phone" yaml:"phone"`
	PayableTo string `json:"payable_to" yaml:"payable_to"`
}

// Metadata holds everything about an invoice except its line items.
// Fields are opaque; nothing here is validated before export.
type Metadata struct {
	IssuerName     string `json:"issuer_name"`
	IssuerAddress1 string `json:"issuer_address1"`
	IssuerAddress2 string `json:"issuer_address2"`
	IssuerPhone    string `json:"issuer_phone"`

	SubmittedDate string `json:"submitted_date"`
	InvoiceFor    string `json:"invoice_for"`

	ClientName     string `json:"client_name"`
	ClientCompany  string `json:"client_company"`
	ClientAddress1 string `json:"client_address1"`
	ClientAddress2 string `json:"client_address2"`

	PayableTo string `json:"payable_to"`
	Project   string `json:"project"`

	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	DueDate       string `json:"due_date"`

	Adjustments decimal.Decimal `json:"adjustments"`

	ServicesSummary string `json:"services_summary"`
	Notes           string `json:"notes"`

	StatementPeriodStart string `json:"statement_period_start,omitempty"`
	StatementPeriodEnd   string `json:"statement_period_end,omitempty"`
}

// NewMetadata returns metadata pre-filled with the issuer and today's dates.
func NewMetadata(issuer Issuer, now time.Time) Metadata {
	return Metadata{
		IssuerName:     issuer.Name,
		IssuerAddress1: issuer.Address1,
		IssuerAddress2: issuer.Address2,
		IssuerPhone:    issuer.Phone,
		PayableTo:      issuer.PayableTo,
		SubmittedDate:  now.Format(DisplayDateLayout),
		InvoiceDate:    now.Format(ISODateLayout),
		Adjustments:    decimal.Zero,
		Notes:          defaultNotes,
	}
}

// MetadataField names an editable metadata field.
type MetadataField string

const (
	MetaIssuerName      MetadataField = "issuer_name"
	MetaIssuerAddress1  MetadataField = "issuer_address1"
	MetaIssuerAddress2  MetadataField = "issuer_address2"
	MetaIssuerPhone     MetadataField = "issuer_phone"
	MetaSubmittedDate   MetadataField = "submitted_date"
	MetaInvoiceFor      MetadataField = "invoice_for"
	MetaClientName      MetadataField = "client_name"
	MetaClientCompany   MetadataField = "client_company"
	MetaClientAddress1  MetadataField = "client_address1"
	MetaClientAddress2  MetadataField = "client_address2"
	MetaPayableTo       MetadataField = "payable_to"
	MetaProject         MetadataField = "project"
	MetaInvoiceNumber   MetadataField = "invoice_number"
	MetaInvoiceDate     MetadataField = "invoice_date"
	MetaDueDate         MetadataField = "due_date"
	MetaAdjustments     MetadataField = "adjustments"
	MetaServicesSummary MetadataField = "services_summary"
	MetaNotes           MetadataField = "notes"
)

// textField returns a pointer to the string field named f, or nil.
func (m *Metadata) textField(f MetadataField) *string {
	switch f {
	case MetaIssuerName:
		return &m.IssuerName
	case MetaIssuerAddress1:
		return &m.IssuerAddress1
	case MetaIssuerAddress2:
		return &m.IssuerAddress2
	case MetaIssuerPhone:
		return &m.IssuerPhone
	case MetaSubmittedDate:
		return &m.SubmittedDate
	case MetaInvoiceFor:
		return &m.InvoiceFor
	case MetaClientName:
		return &m.ClientName
	case MetaClientCompany:
		return &m.ClientCompany
	case MetaClientAddress1:
		return &m.ClientAddress1
	case MetaClientAddress2:
		return &m.ClientAddress2
	case MetaPayableTo:
		return &m.PayableTo
	case MetaProject:
		return &m.Project
	case MetaInvoiceNumber:
		return &m.InvoiceNumber
	case MetaInvoiceDate:
		return &m.InvoiceDate
	case MetaDueDate:
		return &m.DueDate
	case MetaServicesSummary:
		return &m.ServicesSummary
	case MetaNotes:
		return &m.Notes
	}
	return nil
}
