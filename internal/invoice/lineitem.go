package invoice

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sethshoultes/invoice-generator/internal/extraction"
)

// Mode selects how line items are priced.
type Mode string

const (
	// ModeAmount items carry a single editable amount.
	ModeAmount Mode = "amount"
	// ModeQuantity items carry quantity and unit price; amount is derived.
	ModeQuantity Mode = "quantity"
)

// ParseMode returns the mode named by s, defaulting to ModeQuantity.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeQuantity, nil
	case ModeAmount, ModeQuantity:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// DateFormat is the date representation items use in this mode.
func (m Mode) DateFormat() extraction.DateFormat {
	if m == ModeQuantity {
		return extraction.DateDisplay
	}
	return extraction.DateISO
}

// FormatDate formats t in this mode's date representation.
func (m Mode) FormatDate(t time.Time) string {
	if m == ModeQuantity {
		return t.Format(DisplayDateLayout)
	}
	return t.Format(ISODateLayout)
}

// ConvertDate converts a date in either representation to this mode's.
func (m Mode) ConvertDate(s string) string {
	if m == ModeQuantity {
		return ToDisplayDate(s)
	}
	return ToISODate(s)
}

// LineItem is one canonical charge in a session
type LineItem struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
}

// Field names an editable line item field.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldQuantity    Field = "quantity"
	FieldUnitPrice   Field = "unit_price"
	FieldAmount      Field = "amount"
)

// priced reports whether the item carries quantity and unit price.
func (li *LineItem) priced() bool {
	return li.Quantity != nil && li.UnitPrice != nil
}

// derive restores amount == round2(quantity * unitPrice).
func (li *LineItem) derive() {
	if li.priced() {
		li.Amount = Round2(li.Quantity.Mul(*li.UnitPrice))
	}
}

func (li LineItem) clone() LineItem {
	out := li
	if li.Quantity != nil {
		q := *li.Quantity
		out.Quantity = &q
	}
	if li.UnitPrice != nil {
		p := *li.UnitPrice
		out.UnitPrice = &p
	}
	return out
}

// Sequence hands out batch numbers for line item IDs. Combined with the
// position inside a batch it yields IDs that are never reused.
type Sequence struct {
	last atomic.Uint64
}

// Next returns the next batch number.
func (s *Sequence) Next() uint64 {
	return s.last.Add(1)
}

func itemID(batch uint64, index int) string {
	return fmt.Sprintf("li-%d-%d", batch, index)
}

// Normalizer maps raw extracted records into line items.
type Normalizer struct {
	mode Mode
	seq  *Sequence
}

// NewNormalizer creates a Normalizer with its own ID sequence.
func NewNormalizer(mode Mode) *Normalizer {
	return &Normalizer{mode: mode, seq: &Sequence{}}
}

// Mode returns the normalizer's pricing mode.
func (n *Normalizer) Mode() Mode {
	return n.mode
}

// Normalize converts records into line items. It never fails for records
// that passed extraction validation.
func (n *Normalizer) Normalize(records []extraction.RawRecord) []LineItem {
	batch := n.seq.Next()
	items := make([]LineItem, 0, len(records))
	for i, rec := range records {
		items = append(items, n.item(itemID(batch, i), n.mode.ConvertDate(rec.Date), rec.Description, rec.Amount))
	}
	return items
}

// Blank returns an empty line item dated date.
func (n *Normalizer) Blank(date string) LineItem {
	return n.item(itemID(n.seq.Next(), 0), date, "", decimal.Zero)
}

func (n *Normalizer) item(id, date, description string, amount decimal.Decimal) LineItem {
	li := LineItem{
		ID:          id,
		Date:        date,
		Description: description,
		Amount:      Round2(amount),
	}
	if n.mode == ModeQuantity {
		qty := decimal.NewFromInt(1)
		price := amount
		li.Quantity = &qty
		li.UnitPrice = &price
		li.derive()
	}
	return li
}
