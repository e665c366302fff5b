package invoice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sethshoultes/invoice-generator/internal/extraction"
)

// ErrUnknownField is returned when an edit names a field that does not exist.
var ErrUnknownField = errors.New("unknown field")

// Totals are the derived aggregates of a session.
type Totals struct {
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Adjustments decimal.Decimal  `json:"adjustments"`
	Total       *decimal.Decimal `json:"total,omitempty"` // quantity mode only
}

// Snapshot is a detached copy of a session's state.
type Snapshot struct {
	Mode     Mode       `json:"mode"`
	Metadata Metadata   `json:"metadata"`
	Items    []LineItem `json:"items"`
	Totals   Totals     `json:"totals"`
}

// Session is the editable state of one composition pass. Every mutation
// recomputes the totals before returning. A Session is not safe for
// concurrent use.
type Session struct {
	mode       Mode
	meta       Metadata
	items      []LineItem
	normalizer *Normalizer
	clock      TimeSource
	totals     Totals
}

// NewSession creates an empty session.
func NewSession(normalizer *Normalizer, meta Metadata, clock TimeSource) *Session {
	if clock == nil {
		clock = SystemClock()
	}
	s := &Session{
		mode:       normalizer.Mode(),
		meta:       meta,
		items:      make([]LineItem, 0),
		normalizer: normalizer,
		clock:      clock,
	}
	s.recompute()
	return s
}

// Mode returns the session's pricing mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Items returns a copy of the line items in order.
func (s *Session) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	for i, li := range s.items {
		out[i] = li.clone()
	}
	return out
}

// Metadata returns the current metadata.
func (s *Session) Metadata() Metadata {
	return s.meta
}

// Totals returns the derived aggregates.
func (s *Session) Totals() Totals {
	t := s.totals
	if t.Total != nil {
		total := *t.Total
		t.Total = &total
	}
	return t
}

// Snapshot returns a detached copy of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Mode:     s.mode,
		Metadata: s.meta,
		Items:    s.Items(),
		Totals:   s.Totals(),
	}
}

// Populate replaces the line items with the normalized extraction result and
// records the statement period when one was reported.
func (s *Session) Populate(result *extraction.Result) {
	s.items = s.normalizer.Normalize(result.LineItems)
	if p := result.StatementPeriod; p != nil {
		s.meta.StatementPeriodStart = p.Start
		s.meta.StatementPeriodEnd = p.End
	}
	s.recompute()
}

// Append adds the normalized extraction result after the existing items.
// The statement period is only recorded when none is set yet.
func (s *Session) Append(result *extraction.Result) {
	s.items = append(s.items, s.normalizer.Normalize(result.LineItems)...)
	if p := result.StatementPeriod; p != nil && s.meta.StatementPeriodStart == "" && s.meta.StatementPeriodEnd == "" {
		s.meta.StatementPeriodStart = p.Start
		s.meta.StatementPeriodEnd = p.End
	}
	s.recompute()
}

// Clear removes all line items and restores metadata to meta.
func (s *Session) Clear(meta Metadata) {
	s.items = make([]LineItem, 0)
	s.meta = meta
	s.recompute()
}

// ClearItems removes all line items, keeping metadata.
func (s *Session) ClearItems() {
	s.items = make([]LineItem, 0)
	s.recompute()
}

// AddLineItem appends a blank item dated today.
func (s *Session) AddLineItem() LineItem {
	li := s.normalizer.Blank(s.mode.FormatDate(s.clock.Now()))
	s.items = append(s.items, li)
	s.recompute()
	return li.clone()
}

// UpdateLineItem sets one field of the item with the given id. Numeric
// fields coerce invalid input to zero. Unknown ids are ignored.
func (s *Session) UpdateLineItem(id string, field Field, value string) error {
	switch field {
	case FieldDate, FieldDescription, FieldQuantity, FieldUnitPrice, FieldAmount:
	default:
		return fmt.Errorf("updating line item: %w: %s", ErrUnknownField, field)
	}

	idx := s.index(id)
	if idx < 0 {
		return nil
	}
	li := &s.items[idx]

	switch field {
	case FieldDate:
		li.Date = value
	case FieldDescription:
		li.Description = value
	case FieldQuantity:
		if li.priced() {
			q := ParseNumber(value)
			li.Quantity = &q
			li.derive()
		}
	case FieldUnitPrice:
		if li.priced() {
			p := ParseNumber(value)
			li.UnitPrice = &p
			li.derive()
		}
	case FieldAmount:
		// Derived in quantity mode.
		if !li.priced() {
			li.Amount = ParseNumber(value)
		}
	}

	s.recompute()
	return nil
}

// DeleteLineItem removes the item with the given id, preserving the order of
// the rest. Unknown ids are ignored.
func (s *Session) DeleteLineItem(id string) {
	idx := s.index(id)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.recompute()
}

// UpdateMetadata sets one metadata field. Adjustments coerce like numeric
// line item fields.
func (s *Session) UpdateMetadata(field MetadataField, value string) error {
	if field == MetaAdjustments {
		s.meta.Adjustments = ParseNumber(value)
		s.recompute()
		return nil
	}
	p := s.meta.textField(field)
	if p == nil {
		return fmt.Errorf("updating metadata: %w: %s", ErrUnknownField, field)
	}
	*p = value
	s.recompute()
	return nil
}

func (s *Session) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) recompute() {
	sum := decimal.Zero
	for _, li := range s.items {
		sum = sum.Add(li.Amount)
	}
	s.totals = Totals{
		Subtotal:    Round2(sum),
		Adjustments: s.meta.Adjustments,
	}
	if s.mode == ModeQuantity {
		total := s.totals.Subtotal.Add(s.meta.Adjustments)
		s.totals.Total = &total
	}
}
