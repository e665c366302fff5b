package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethshoultes/invoice-generator/internal/export"
	"github.com/sethshoultes/invoice-generator/internal/extraction"
	"github.com/sethshoultes/invoice-generator/internal/ingest"
	"github.com/sethshoultes/invoice-generator/internal/invoice"
	"github.com/sethshoultes/invoice-generator/internal/metrics"
	"github.com/sethshoultes/invoice-generator/internal/wizard"
)

// ErrExportNotAvailable is returned for an export the current step does not offer.
var ErrExportNotAvailable = errors.New("export not available at this step")

// ErrSessionReset is returned by Upload when the session was reset while the
// extraction was running. The result is discarded.
var ErrSessionReset = errors.New("session was reset during extraction")

// Config holds the collaborators of a Composer.
type Config struct {
	Mode     invoice.Mode
	Issuer   invoice.Issuer
	Ingestor *ingest.Ingestor
	Client   *extraction.Client
	Clock    invoice.TimeSource
}

// View is a point-in-time copy of everything a client needs to draw the
// current step.
type View struct {
	Step          wizard.Step       `json:"step"`
	StepName      string            `json:"step_name"`
	Actions       []wizard.Action   `json:"actions"`
	CanExportPDF  bool              `json:"can_export_pdf"`
	CanExportFlat bool              `json:"can_export_flat"`
	Extraction    extraction.Status `json:"extraction"`
	invoice.Snapshot
}

// Composer drives one composition pass: upload, extraction, editing and
// export. It is safe for concurrent use. The extraction call runs without
// holding the lock so edits and status reads stay responsive.
type Composer struct {
	issuer   invoice.Issuer
	ingestor *ingest.Ingestor
	client   *extraction.Client
	clock    invoice.TimeSource

	mu         sync.Mutex
	session    *invoice.Session
	wizard     *wizard.Wizard
	generation uint64
	// edits counts item list changes; an extraction that lands after one
	// appends instead of replacing.
	edits      uint64
}

// New creates a Composer with an empty session at the Upload step.
func New(cfg Config) *Composer {
	if cfg.Clock == nil {
		cfg.Clock = invoice.SystemClock()
	}
	if cfg.Ingestor == nil {
		cfg.Ingestor = ingest.NewIngestor()
	}
	c := &Composer{
		issuer:   cfg.Issuer,
		ingestor: cfg.Ingestor,
		client:   cfg.Client,
		clock:    cfg.Clock,
		wizard:   wizard.New(),
	}
	c.session = invoice.NewSession(invoice.NewNormalizer(cfg.Mode), c.freshMetadata(), cfg.Clock)
	return c
}

func (c *Composer) freshMetadata() invoice.Metadata {
	return invoice.NewMetadata(c.issuer, c.clock.Now())
}

// View returns the current state.
func (c *Composer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Composer) view() View {
	v := View{
		Step:          c.wizard.Step(),
		StepName:      c.wizard.Step().String(),
		Actions:       c.wizard.Available(),
		CanExportPDF:  c.wizard.CanExportPDF(),
		CanExportFlat: c.wizard.CanExportFlat(),
		Snapshot:      c.session.Snapshot(),
	}
	if c.client != nil {
		v.Extraction = c.client.Status()
	}
	return v
}

// Upload ingests file, runs the extraction and, on success, replaces the
// session's items and advances to the Items step. Items added or edited while
// the extraction ran are kept and the extracted items are appended after
// them. Any failure leaves the session untouched and the wizard at Upload.
// A nil or empty file is a no-op.
func (c *Composer) Upload(ctx context.Context, file *ingest.File) (View, error) {
	c.mu.Lock()
	if step := c.wizard.Step(); step != wizard.Upload {
		c.mu.Unlock()
		return c.View(), fmt.Errorf("uploading at %s: %w", step, wizard.ErrActionNotAvailable)
	}
	if c.client == nil {
		c.mu.Unlock()
		return c.View(), errors.New("uploading: no extraction service configured")
	}
	mode := c.session.Mode()
	generation := c.generation
	edits := c.edits
	c.mu.Unlock()

	payload, err := c.ingestor.Ingest(file)
	if err != nil {
		return c.View(), err
	}
	if payload == nil {
		return c.View(), nil
	}

	slog.Info("Uploading document",
		"filename", file.Name,
		"media_type", payload.MediaType,
		"size", payload.Size,
	)

	result, err := c.client.Run(ctx, extraction.Request{
		MediaType:  payload.MediaType,
		Data:       payload.Data,
		DateFormat: mode.DateFormat(),
	})
	if err != nil {
		return c.View(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		// The client settled after Reset and still holds the discarded result.
		c.client.Reset()
		return c.view(), ErrSessionReset
	}
	if c.edits != edits {
		c.session.Append(result)
	} else {
		c.session.Populate(result)
	}
	// The user may have jumped ahead while the extraction ran.
	if c.wizard.Step() == wizard.Upload {
		if err := c.wizard.Apply(wizard.ExtractionSucceeded); err != nil {
			return c.view(), err
		}
	}
	return c.view(), nil
}

// StartBlank skips extraction and starts editing an empty item list.
func (c *Composer) StartBlank() (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.wizard.Apply(wizard.StartBlank); err != nil {
		return c.view(), err
	}
	c.edits++
	c.session.ClearItems()
	return c.view(), nil
}

// Next advances one step.
func (c *Composer) Next() (View, error) {
	return c.apply(wizard.Next)
}

// Back returns one step. It is a no-op at Upload.
func (c *Composer) Back() (View, error) {
	return c.apply(wizard.Back)
}

func (c *Composer) apply(action wizard.Action) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.wizard.Apply(action); err != nil {
		return c.view(), err
	}
	return c.view(), nil
}

// Jump moves directly to step.
func (c *Composer) Jump(step wizard.Step) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.wizard.JumpTo(step); err != nil {
		return c.view(), err
	}
	return c.view(), nil
}

// Reset clears the session entirely and returns to Upload. An extraction
// still running is discarded when it completes.
func (c *Composer) Reset() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.session.Clear(c.freshMetadata())
	_ = c.wizard.Apply(wizard.Reset)
	if c.client != nil {
		c.client.Reset()
	}
	return c.view()
}

// AddLineItem appends a blank item.
func (c *Composer) AddLineItem() (invoice.LineItem, View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.edits++
	li := c.session.AddLineItem()
	return li, c.view()
}

// UpdateLineItem edits one field of an item.
func (c *Composer) UpdateLineItem(id string, field invoice.Field, value string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.edits++
	err := c.session.UpdateLineItem(id, field, value)
	return c.view(), err
}

// DeleteLineItem removes an item.
func (c *Composer) DeleteLineItem(id string) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.edits++
	c.session.DeleteLineItem(id)
	return c.view()
}

// UpdateMetadata edits one metadata field.
func (c *Composer) UpdateMetadata(field invoice.MetadataField, value string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.session.UpdateMetadata(field, value)
	return c.view(), err
}

// Document describes the current session for preview. It is available at
// every step; only rendering it to a file is gated.
func (c *Composer) Document() *export.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	return export.BuildDocument(c.session.Snapshot())
}

func (c *Composer) snapshotIf(allowed func(*wizard.Wizard) bool) (invoice.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !allowed(c.wizard) {
		return invoice.Snapshot{}, fmt.Errorf("exporting at %s: %w", c.wizard.Step(), ErrExportNotAvailable)
	}
	return c.session.Snapshot(), nil
}

// ExportCSV writes the flat export to sink and returns its name.
func (c *Composer) ExportCSV(sink export.Sink) (name string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExport("csv", time.Since(start), err) }()

	snap, err := c.snapshotIf((*wizard.Wizard).CanExportFlat)
	if err != nil {
		return "", err
	}
	name = export.CSVFilename(snap.Metadata)
	if err := sink.WriteText(name, export.ContentTypeCSV, export.CSV(snap)); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	slog.Info("Exported CSV", "filename", name, "items", len(snap.Items))
	return name, nil
}

// ExportXLSX writes the workbook export to sink and returns its name.
func (c *Composer) ExportXLSX(sink export.Sink) (name string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExport("xlsx", time.Since(start), err) }()

	snap, err := c.snapshotIf((*wizard.Wizard).CanExportFlat)
	if err != nil {
		return "", err
	}
	data, err := export.XLSX(snap)
	if err != nil {
		return "", fmt.Errorf("building workbook: %w", err)
	}
	name = export.XLSXFilename(snap.Metadata)
	if err := sink.WriteBinary(name, export.ContentTypeXLSX, data); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	slog.Info("Exported XLSX", "filename", name, "items", len(snap.Items))
	return name, nil
}

// ExportPDF renders the document and writes it to sink. It is only offered
// at the Preview step.
func (c *Composer) ExportPDF(renderer export.Renderer, sink export.Sink) (name string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExport("pdf", time.Since(start), err) }()

	snap, err := c.snapshotIf((*wizard.Wizard).CanExportPDF)
	if err != nil {
		return "", err
	}
	if renderer == nil {
		return "", export.ErrRendererUnavailable
	}
	data, err := renderer.Render(export.BuildDocument(snap))
	if err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	name = export.PDFFilename(snap.Metadata)
	if err := sink.WriteBinary(name, export.ContentTypePDF, data); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	slog.Info("Exported PDF", "filename", name, "bytes", len(data))
	return name, nil
}
