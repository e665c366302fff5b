package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/sethshoultes/invoice-generator/internal/composer"
	"github.com/sethshoultes/invoice-generator/internal/export"
	"github.com/sethshoultes/invoice-generator/internal/extraction"
	"github.com/sethshoultes/invoice-generator/internal/ingest"
	"github.com/sethshoultes/invoice-generator/internal/invoice"
	"github.com/sethshoultes/invoice-generator/internal/metrics"
	"github.com/sethshoultes/invoice-generator/internal/render"
	"github.com/sethshoultes/invoice-generator/internal/wizard"
)

// multipart overhead allowed on top of the document itself
const formOverhead = 1 << 20

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type sessionResponse struct {
	ID string `json:"id"`
	composer.View
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type jumpRequest struct {
	Step int `json:"step"`
}

type itemResponse struct {
	Item invoice.LineItem `json:"item"`
	sessionResponse
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	var (
		unsupported *ingest.UnsupportedFileError
		tooLarge    *ingest.FileTooLargeError
		schema      *extraction.SchemaViolationError
		reported    *extraction.ServiceReportedError
		transport   *extraction.TransportError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &schema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &reported), errors.As(err, &transport):
		return http.StatusBadGateway
	case errors.Is(err, extraction.ErrExtractionInFlight),
		errors.Is(err, wizard.ErrActionNotAvailable),
		errors.Is(err, composer.ErrExportNotAvailable),
		errors.Is(err, composer.ErrSessionReset):
		return http.StatusConflict
	case errors.Is(err, invoice.ErrUnknownField), errors.Is(err, wizard.ErrInvalidStep):
		return http.StatusBadRequest
	case errors.Is(err, export.ErrRendererUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeFailure reports err with the matching status. Internal failures are
// logged and reported generically.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// lookup returns the session named in the path and refreshes its expiry.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *composer.Composer, bool) {
	id := r.PathValue("id")
	v, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return "", nil, false
	}
	s.sessions.Set(id, v, cache.DefaultExpiration)
	return id, v.(*composer.Composer), true
}

func (s *Server) respond(w http.ResponseWriter, id string, view composer.View, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, View: view})
}

// handleCreateSession starts a new composition session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	mode := s.cfg.DefaultMode
	if req.Mode != "" {
		parsed, err := invoice.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}

	c := composer.New(composer.Config{
		Mode:     mode,
		Issuer:   s.cfg.Issuer,
		Ingestor: s.cfg.Ingestor,
		Client:   extraction.NewClient(s.cfg.Service, s.cfg.Provider),
		Clock:    s.cfg.Clock,
	})
	id := uuid.New().String()
	s.sessions.Set(id, c, cache.DefaultExpiration)
	metrics.SetActiveSessions(s.sessions.ItemCount())

	slog.Info("Session created", "session_id", id, "mode", mode)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, View: c.View()})
}

// handleGetSession returns the current view of a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, id, c.View(), nil)
}

// handleDeleteSession discards a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload runs the extraction on an uploaded statement
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(ingest.MaxFileSize + formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 10MB.")
			return
		}
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}
	if len(data) > ingest.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 10MB.")
		return
	}

	ctx := r.Context()
	if s.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
	}

	view, err := c.Upload(ctx, &ingest.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		slog.Error("Error processing upload", "session_id", id, "filename", header.Filename, "error", err)
	}
	s.respond(w, id, view, err)
}

func (s *Server) handleStartBlank(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	view, err := c.StartBlank()
	s.respond(w, id, view, err)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	view, err := c.Next()
	s.respond(w, id, view, err)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	view, err := c.Back()
	s.respond(w, id, view, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, id, c.Reset(), nil)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	view, err := c.Jump(wizard.Step(req.Step))
	s.respond(w, id, view, err)
}

// handleAddItem appends a blank line item
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	item, view := c.AddLineItem()
	writeJSON(w, http.StatusCreated, itemResponse{Item: item, sessionResponse: sessionResponse{ID: id, View: view}})
}

func (s *Server) decodeEdit(w http.ResponseWriter, r *http.Request) (editRequest, bool) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}

// handleUpdateItem edits one field of a line item
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeEdit(w, r)
	if !ok {
		return
	}
	view, err := c.UpdateLineItem(r.PathValue("itemID"), invoice.Field(req.Field), req.Value)
	s.respond(w, id, view, err)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, id, c.DeleteLineItem(r.PathValue("itemID")), nil)
}

// handleUpdateMetadata edits one invoice metadata field
func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeEdit(w, r)
	if !ok {
		return
	}
	view, err := c.UpdateMetadata(invoice.MetadataField(req.Field), req.Value)
	s.respond(w, id, view, err)
}

// handleDocument returns the render-agnostic document model
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Document())
}

// handlePreview returns the document as a printable HTML page
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	page, err := s.preview.Render(c.Document())
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", render.HTMLContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		slog.Error("Error writing preview", "error", err)
	}
}

// exportSink sends the artifact to the client, archiving and mirroring it
// first when those are configured.
func (s *Server) exportSink(w http.ResponseWriter) export.Sink {
	var archive export.Sink
	if s.cfg.Archive != nil {
		archive = s.cfg.Archive
	}
	return export.Tee(archive, s.cfg.Mirror, &responseSink{w: w})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := c.ExportCSV(s.exportSink(w)); err != nil {
		writeFailure(w, err)
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := c.ExportXLSX(s.exportSink(w)); err != nil {
		writeFailure(w, err)
	}
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	_, c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if _, err := c.ExportPDF(s.cfg.Renderer, s.exportSink(w)); err != nil {
		writeFailure(w, err)
	}
}

// handleListExports lists archived exports
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		writeError(w, http.StatusNotFound, "Export archive is not configured")
		return
	}
	entries, err := s.cfg.Archive.List()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetExport downloads an archived export
func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Archive == nil {
		writeError(w, http.StatusNotFound, "Export archive is not configured")
		return
	}
	entry, data, err := s.cfg.Archive.Get(r.PathValue("name"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := (&responseSink{w: w}).WriteBinary(entry.Name, entry.ContentType, data); err != nil {
		slog.Error("Error writing export", "name", entry.Name, "error", err)
	}
}
