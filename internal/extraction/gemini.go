package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-pro"

// Gemini implements the Service interface using Google Gemini with forced
// function calling.
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a new Gemini Service instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
	}, nil
}

// geminiToolSchema mirrors BuildToolSchema in Gemini's schema dialect. The
// positive-amount constraint is enforced when the call is validated.
func geminiToolSchema(format DateFormat) *genai.Schema {
	if format == "" {
		format = DateISO
	}
	record := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"date":        {Type: genai.TypeString, Description: fmt.Sprintf("Transaction date (%s)", format)},
			"description": {Type: genai.TypeString, Description: "Description of the charge"},
			"amount":      {Type: genai.TypeNumber, Description: "Amount as positive number"},
		},
		Required: []string{"date", "description", "amount"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"line_items": {Type: genai.TypeArray, Items: record},
			"statement_period": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start": {Type: genai.TypeString},
					"end":   {Type: genai.TypeString},
				},
			},
		},
		Required: []string{"line_items"},
	}
}

func (g *Gemini) model(format DateFormat) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.modelName)
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        ToolName,
			Description: toolDescription,
			Parameters:  geminiToolSchema(format),
		}},
	}}
	model.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{ToolName},
		},
	}
	return model
}

// Extract analyzes a statement and returns the forced function call's items
func (g *Gemini) Extract(ctx context.Context, req Request) (*Result, error) {
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	parts := []genai.Part{
		genai.Blob{MIMEType: req.MediaType, Data: data},
		genai.Text(BuildInstruction(req.DateFormat)),
	}

	resp, err := g.model(req.DateFormat).GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, &ServiceReportedError{Type: "blocked", Message: blocked.Error()}
		}
		return nil, &TransportError{Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, schemaViolation("no candidates in gemini response")
	}
	return resultFromParts(resp.Candidates[0].Content.Parts, req.DateFormat)
}

// resultFromParts finds the record_invoice_items call among parts and
// validates its arguments.
func resultFromParts(parts []genai.Part, format DateFormat) (*Result, error) {
	for _, part := range parts {
		var call *genai.FunctionCall
		switch p := part.(type) {
		case genai.FunctionCall:
			call = &p
		case *genai.FunctionCall:
			call = p
		default:
			continue
		}
		if call.Name != ToolName {
			continue
		}
		args, err := json.Marshal(call.Args)
		if err != nil {
			return nil, &SchemaViolationError{Cause: fmt.Errorf("encoding function args: %w", err)}
		}
		return parseToolInput(args, format)
	}
	return nil, schemaViolation("no %s function call in gemini response", ToolName)
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
