package server

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sethshoultes/invoice-generator/internal/export"
	"github.com/sethshoultes/invoice-generator/internal/extraction"
	"github.com/sethshoultes/invoice-generator/internal/ingest"
	"github.com/sethshoultes/invoice-generator/internal/invoice"
	"github.com/sethshoultes/invoice-generator/internal/metrics"
	"github.com/sethshoultes/invoice-generator/internal/render"
)

const defaultSessionTTL = 2 * time.Hour

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Archive keeps a copy of every export and serves it back.
type Archive interface {
	export.Sink
	List() ([]export.Entry, error)
	Get(name string) (*export.Entry, []byte, error)
}

// Config holds the collaborators shared by every session.
type Config struct {
	Service     extraction.Service
	Provider    string
	DefaultMode invoice.Mode
	Issuer      invoice.Issuer
	Ingestor    *ingest.Ingestor
	Renderer    export.Renderer
	Archive     Archive
	// Mirror receives a copy of every export alongside the archive.
	Mirror      export.Sink
	Clock       invoice.TimeSource
	BasicAuth   BasicAuth

	// ExtractTimeout bounds each extraction call. Zero means no bound.
	ExtractTimeout time.Duration
	// SessionTTL is how long an idle session is kept in memory.
	SessionTTL time.Duration
}

// Server handles HTTP requests for composition sessions
type Server struct {
	cfg      Config
	sessions *cache.Cache
	preview  *render.HTML
	mux      *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(cfg Config) *Server {
	return NewServerWithMux(cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(cfg Config, mux *http.ServeMux) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = invoice.ModeQuantity
	}
	if cfg.Ingestor == nil {
		cfg.Ingestor = ingest.NewIngestor(ingest.WithHEICConversion(), ingest.WithMaxSize(ingest.MaxFileSize))
	}
	s := &Server{
		cfg:      cfg,
		sessions: cache.New(cfg.SessionTTL, cfg.SessionTTL/2),
		preview:  render.NewHTML(),
		mux:      mux,
	}
	s.sessions.OnEvicted(func(id string, _ any) {
		slog.Debug("Session evicted", "session_id", id)
		metrics.SetActiveSessions(s.sessions.ItemCount())
	})
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.cfg.BasicAuth.Username == "" && s.cfg.BasicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.BasicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.BasicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Generator"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/sessions", s.requireAuth(s.handleCreateSession))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.requireAuth(s.handleDeleteSession))

	s.mux.HandleFunc("POST /api/sessions/{id}/upload", s.requireAuth(s.handleUpload))
	s.mux.HandleFunc("POST /api/sessions/{id}/blank", s.requireAuth(s.handleStartBlank))
	s.mux.HandleFunc("POST /api/sessions/{id}/next", s.requireAuth(s.handleNext))
	s.mux.HandleFunc("POST /api/sessions/{id}/back", s.requireAuth(s.handleBack))
	s.mux.HandleFunc("POST /api/sessions/{id}/reset", s.requireAuth(s.handleReset))
	s.mux.HandleFunc("POST /api/sessions/{id}/jump", s.requireAuth(s.handleJump))

	s.mux.HandleFunc("POST /api/sessions/{id}/items", s.requireAuth(s.handleAddItem))
	s.mux.HandleFunc("PATCH /api/sessions/{id}/items/{itemID}", s.requireAuth(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/sessions/{id}/items/{itemID}", s.requireAuth(s.handleDeleteItem))
	s.mux.HandleFunc("PATCH /api/sessions/{id}/metadata", s.requireAuth(s.handleUpdateMetadata))

	s.mux.HandleFunc("GET /api/sessions/{id}/document", s.requireAuth(s.handleDocument))
	s.mux.HandleFunc("GET /api/sessions/{id}/preview", s.requireAuth(s.handlePreview))
	s.mux.HandleFunc("GET /api/sessions/{id}/export.csv", s.requireAuth(s.handleExportCSV))
	s.mux.HandleFunc("GET /api/sessions/{id}/export.xlsx", s.requireAuth(s.handleExportXLSX))
	s.mux.HandleFunc("GET /api/sessions/{id}/export.pdf", s.requireAuth(s.handleExportPDF))

	s.mux.HandleFunc("GET /api/exports/{name}", s.requireAuth(s.handleGetExport))
	s.mux.HandleFunc("GET /api/exports", s.requireAuth(s.handleListExports))

	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
