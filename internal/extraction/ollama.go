package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llava"
)

// Ollama implements the Service interface using a local Ollama vision model.
// Ollama has no tool forcing for images, so the tool schema is passed as the
// structured output format instead.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Service instance
// Recommended models for statement extraction:
//   - llava:1.6 (best balance of accuracy and speed)
//   - qwen2-vl:7b (good OCR capabilities)
//   - llama3.2-vision
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if modelName == "" {
		modelName = defaultOllamaModel
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   map[string]any  `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Extract converts the document to PNG and asks the model for the tool input
func (o *Ollama) Extract(ctx context.Context, req Request) (*Result, error) {
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	pngData, _, err := toPNG(raw, req.MediaType)
	if err != nil {
		return nil, err
	}

	schema := BuildToolSchema(req.DateFormat)
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: schema,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading bank and payment statements. Answer only with JSON matching the " + ToolName + " schema.",
			},
			{
				Role:    "user",
				Content: BuildInstruction(req.DateFormat),
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("calling ollama API: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response: %w", err)}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &TransportError{Err: fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))}
		}
		return nil, &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if chatResp.Error != "" {
		return nil, &ServiceReportedError{Message: chatResp.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("ollama API error (status %d)", resp.StatusCode)}
	}

	text, ok := cleanModelJSON(chatResp.Message.Content)
	if !ok {
		return nil, schemaViolation("no JSON object in ollama response")
	}
	return parseToolInput(json.RawMessage(text), req.DateFormat)
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
