package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/sethshoultes/invoice-generator/internal/config"
	"github.com/sethshoultes/invoice-generator/internal/export"
	"github.com/sethshoultes/invoice-generator/internal/extraction"
	"github.com/sethshoultes/invoice-generator/internal/ingest"
	"github.com/sethshoultes/invoice-generator/internal/invoice"
	"github.com/sethshoultes/invoice-generator/internal/metrics"
	"github.com/sethshoultes/invoice-generator/internal/render"
	"github.com/sethshoultes/invoice-generator/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; flags and the environment still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}

	flags := ff.NewFlagSet("invoice-generator")
	var (
		port           = flags.IntLong("port", 8080, "HTTP server port")
		provider       = flags.StringLong("provider", "anthropic", "Extraction provider: 'anthropic', 'gemini' or 'ollama'")
		anthropicKey   = flags.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = flags.StringLong("anthropic-model", "claude-sonnet-4-20250514", "Anthropic model name")
		anthropicURL   = flags.StringLong("anthropic-url", "https://api.anthropic.com", "Anthropic API base URL")
		geminiKey      = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = flags.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = flags.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		mode           = flags.StringLong("mode", "quantity", "Default pricing mode: 'quantity' or 'amount'")
		issuerPath     = flags.StringLong("issuer", "", "Issuer profile YAML file (optional)")
		archivePath    = flags.StringLong("archive-db", "", "Export archive database file (optional)")
		exportDir      = flags.StringLong("export-dir", "", "Directory that also receives a copy of every export (optional)")
		heic           = flags.BoolLong("heic", "Convert HEIC uploads to PNG before extraction")
		extractTimeout = flags.DurationLong("extract-timeout", 2*time.Minute, "Upper bound on a single extraction call")
		sessionTTL     = flags.DurationLong("session-ttl", 2*time.Hour, "How long an idle session is kept")
		authUser       = flags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = flags.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_GENERATOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	defaultMode, err := invoice.ParseMode(*mode)
	if err != nil {
		slog.Error("Invalid pricing mode", "mode", *mode, "valid", "quantity or amount")
		os.Exit(1)
	}

	issuer, err := config.LoadIssuer(*issuerPath)
	if err != nil {
		slog.Error("Failed to load issuer profile", "path", *issuerPath, "error", err)
		os.Exit(1)
	}

	// Initialize extraction service based on provider
	var service extraction.Service
	switch *provider {
	case "anthropic":
		apiKey := *anthropicKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Anthropic API key is required. Set --anthropic-key flag or ANTHROPIC_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Anthropic extraction...", "model", *anthropicModel)
		service, err = extraction.NewAnthropic(extraction.AnthropicConfig{
			APIKey:  apiKey,
			Model:   *anthropicModel,
			BaseURL: *anthropicURL,
		})
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extraction...", "model", *geminiModel)
		service, err = extraction.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama extraction...", "url", *ollamaURL, "model", *ollamaModel)
		service, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid provider", "provider", *provider, "valid", "anthropic, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize extraction service", "provider", *provider, "error", err)
		os.Exit(1)
	}
	defer service.Close()

	// Optional export archive and directory copy
	var (
		archive server.Archive
		mirror  export.Sink
	)
	if *archivePath != "" {
		slog.Info("Initializing export archive...", "path", *archivePath)
		bolt, err := export.NewBoltSink(*archivePath)
		if err != nil {
			slog.Error("Failed to initialize export archive", "error", err)
			os.Exit(1)
		}
		defer bolt.Close()
		archive = bolt
	}
	if *exportDir != "" {
		local, err := export.NewLocalSink(*exportDir)
		if err != nil {
			slog.Error("Failed to initialize export directory", "error", err)
			os.Exit(1)
		}
		slog.Info("Copying exports to directory", "path", *exportDir)
		mirror = local
	}

	ingestOpts := []ingest.Option{ingest.WithMaxSize(ingest.MaxFileSize)}
	if *heic {
		ingestOpts = append(ingestOpts, ingest.WithHEICConversion())
	}

	metrics.Init()

	srv := server.NewServer(server.Config{
		Service:        service,
		Provider:       *provider,
		DefaultMode:    defaultMode,
		Issuer:         issuer,
		Ingestor:       ingest.NewIngestor(ingestOpts...),
		Renderer:       render.NewPDF(),
		Archive:        archive,
		Mirror:         mirror,
		BasicAuth:      server.BasicAuth{Username: *authUser, Password: *authPass},
		ExtractTimeout: *extractTimeout,
		SessionTTL:     *sessionTTL,
	})

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"provider", *provider,
		"mode", defaultMode,
		"version", version,
	)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
