package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

const toolDescription = "Extract line items from a bank or payment statement"

// maxAmountScale is the most fractional digits kept from a reported amount.
const maxAmountScale = 6

// MaxAmount bounds a single reported amount. Larger values are treated as a
// malformed response.
var MaxAmount = decimal.New(1, 12)

// BuildToolSchema returns the JSON schema of the record_invoice_items tool
// input. The date description follows the requested date format.
func BuildToolSchema(format DateFormat) map[string]any {
	if format == "" {
		format = DateISO
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"line_items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"date": map[string]any{
							"type":        "string",
							"description": fmt.Sprintf("Transaction date (%s)", format),
						},
						"description": map[string]any{
							"type":        "string",
							"description": "Description of the charge",
						},
						"amount": map[string]any{
							"type":             "number",
							"exclusiveMinimum": 0,
							"description":      "Amount as positive number",
						},
					},
					"required": []string{"date", "description", "amount"},
				},
			},
			"statement_period": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{"type": "string"},
					"end":   map[string]any{"type": "string"},
				},
			},
		},
		"required": []string{"line_items"},
	}
}

// BuildInstruction returns the text block sent alongside the document.
func BuildInstruction(format DateFormat) string {
	if format == "" {
		format = DateISO
	}
	return fmt.Sprintf(`Extract ALL charges and fees from this bank/payment statement.

For each charge, capture:
- Date (format as %s)
- Description (the merchant name or charge description)
- Amount (as a positive number, no currency symbols)

Extract every single line item. Don't skip or summarize any charges.`, format)
}

// validateAgainstSchema validates data against schemaMap.
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// parseToolInput validates a raw tool input and decodes it into a Result.
// A missing, null or empty line_items array is a schema violation.
func parseToolInput(input json.RawMessage, format DateFormat) (*Result, error) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, schemaViolation("tool input is empty")
	}
	if err := validateAgainstSchema(BuildToolSchema(format), trimmed); err != nil {
		return nil, &SchemaViolationError{Cause: err}
	}

	var result Result
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, &SchemaViolationError{Cause: fmt.Errorf("decoding tool input: %w", err)}
	}
	if len(result.LineItems) == 0 {
		return nil, schemaViolation("line_items is empty")
	}
	for i, rec := range result.LineItems {
		if rec.Amount.GreaterThan(MaxAmount) {
			return nil, schemaViolation("line_items[%d].amount %s is out of range", i, rec.Amount.String())
		}
		if rec.Amount.Exponent() < -maxAmountScale {
			result.LineItems[i].Amount = rec.Amount.Round(maxAmountScale)
		}
	}
	return &result, nil
}
