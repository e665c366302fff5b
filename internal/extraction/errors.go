package extraction

import (
	"errors"
	"fmt"
)

// NoLineItemsMessage is reported for every response that does not carry a
// usable line item list, whatever the underlying cause.
const NoLineItemsMessage = "No line items extracted"

// ErrExtractionInFlight is returned when an extraction is started while
// another one is still processing.
var ErrExtractionInFlight = errors.New("an extraction is already in progress")

// TransportError means the call to the extraction service could not be
// completed. Its message is the underlying failure, verbatim.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceReportedError carries an error payload returned by the service itself.
type ServiceReportedError struct {
	Type    string
	Message string
}

func (e *ServiceReportedError) Error() string {
	if e.Message == "" {
		return "extraction service error"
	}
	return e.Message
}

// SchemaViolationError means the response did not contain a valid
// structured-output block with line items.
type SchemaViolationError struct {
	Cause error
}

func (e *SchemaViolationError) Error() string {
	return NoLineItemsMessage
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Cause
}

func schemaViolation(format string, args ...any) error {
	return &SchemaViolationError{Cause: fmt.Errorf(format, args...)}
}
