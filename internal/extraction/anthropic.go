package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	anthropicVersion      = "2023-06-01"
	defaultMaxTokens      = 4096
)

// AnthropicConfig configures the Anthropic Messages API service.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	// HTTPClient defaults to a client without a timeout; callers bound the
	// call through the context.
	HTTPClient *http.Client
}

// Anthropic implements the Service interface using the Anthropic Messages API
// with a forced tool call.
type Anthropic struct {
	cfg    AnthropicConfig
	client *http.Client
}

// NewAnthropic creates a new Anthropic Service instance
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Anthropic{cfg: cfg, client: client}, nil
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicRequest represents the request body for the Messages API
type anthropicRequest struct {
	Model      string              `json:"model"`
	MaxTokens  int                 `json:"max_tokens"`
	Tools      []anthropicTool     `json:"tools"`
	ToolChoice anthropicToolChoice `json:"tool_choice"`
	Messages   []anthropicMessage  `json:"messages"`
}

type anthropicContent struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// anthropicResponse represents the response from the Messages API
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func buildAnthropicRequest(cfg AnthropicConfig, req Request) anthropicRequest {
	blockType := "image"
	if req.MediaType == "application/pdf" {
		blockType = "document"
	}
	return anthropicRequest{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Tools: []anthropicTool{{
			Name:        ToolName,
			Description: toolDescription,
			InputSchema: BuildToolSchema(req.DateFormat),
		}},
		ToolChoice: anthropicToolChoice{Type: "tool", Name: ToolName},
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicBlock{
				{
					Type: blockType,
					Source: &anthropicSource{
						Type:      "base64",
						MediaType: req.MediaType,
						Data:      req.Data,
					},
				},
				{
					Type: "text",
					Text: BuildInstruction(req.DateFormat),
				},
			},
		}},
	}
}

// Extract sends the document to the Messages API and validates the forced
// tool call in the response.
func (a *Anthropic) Extract(ctx context.Context, req Request) (*Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	jsonData, err := json.Marshal(buildAnthropicRequest(a.cfg, req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	slog.Debug("Sending extraction request",
		"req_id", rid,
		"model", a.cfg.Model,
		"media_type", req.MediaType,
		"content_length", len(jsonData),
	)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response: %w", err)}
	}

	slog.Debug("Received extraction response",
		"req_id", rid,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	var msg anthropicResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &TransportError{Err: fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))}
		}
		return nil, &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	if msg.Error != nil {
		return nil, &ServiceReportedError{Type: msg.Error.Type, Message: msg.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("anthropic API error (status %d)", resp.StatusCode)}
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		if block.Name != "" && block.Name != ToolName {
			continue
		}
		return parseToolInput(block.Input, req.DateFormat)
	}
	return nil, schemaViolation("no %s tool_use block in response", ToolName)
}

// Close is a no-op for the HTTP client
func (a *Anthropic) Close() error {
	return nil
}
