package extraction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethshoultes/invoice-generator/internal/metrics"
)

// State is the lifecycle of one extraction invocation.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateError      State = "error"
)

// Status is a point-in-time view of a Client.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
	Items   int    `json:"items,omitempty"`
}

// Client runs extractions against a Service, one at a time, and tracks the
// outcome of the latest one.
type Client struct {
	service  Service
	provider string

	mu      sync.Mutex
	state   State
	result  *Result
	message string
}

// NewClient creates an idle Client. provider labels logs and metrics.
func NewClient(service Service, provider string) *Client {
	return &Client{
		service:  service,
		provider: provider,
		state:    StateIdle,
	}
}

// Run performs one extraction. It returns ErrExtractionInFlight without
// touching the client's state if a previous Run has not settled yet.
// There is no cancellation or timeout here; callers that want a bound put a
// deadline on ctx.
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.mu.Unlock()
		return nil, ErrExtractionInFlight
	}
	c.state = StateProcessing
	c.result = nil
	c.message = ""
	c.mu.Unlock()

	start := time.Now()
	result, err := c.service.Extract(ctx, req)
	if err == nil && (result == nil || len(result.LineItems) == 0) {
		err = schemaViolation("service returned no line items")
	}

	var items int
	if err == nil {
		items = len(result.LineItems)
	}
	metrics.ObserveExtraction(c.provider, time.Since(start), items, err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		slog.Error("Extraction failed",
			"provider", c.provider,
			"media_type", req.MediaType,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		c.state = StateError
		c.message = err.Error()
		return nil, err
	}

	slog.Info("Extraction complete",
		"provider", c.provider,
		"items", items,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	c.state = StateDone
	c.result = result
	return result, nil
}

// Status reports the current state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Message: c.message}
	if c.result != nil {
		st.Items = len(c.result.LineItems)
	}
	return st
}

// Reset returns a settled client to idle. It has no effect while processing.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateProcessing {
		return
	}
	c.state = StateIdle
	c.result = nil
	c.message = ""
}
