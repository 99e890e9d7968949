package generator

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sakif/nutrilog/internal/model"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator runs nutrition analysis through the Google Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini-backed generator.
func NewGemini(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generator: creating Gemini client: %w", err)
	}
	m := client.GenerativeModel("gemini-2.0-flash")
	// JSON-only output keeps parseResult from fighting prose preambles.
	m.ResponseMIMEType = "application/json"
	return &GeminiGenerator{client: client, model: m}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, description string) (*model.Result, error) {
	text, err := g.complete(ctx, fmt.Sprintf(mealPrompt, description))
	if err != nil {
		return nil, err
	}
	return parseResult(text)
}

func (g *GeminiGenerator) GenerateComponent(ctx context.Context, description string) (*model.Component, error) {
	text, err := g.complete(ctx, fmt.Sprintf(componentPrompt, description))
	if err != nil {
		return nil, err
	}
	return parseComponent(text)
}

func (g *GeminiGenerator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generator: gemini request: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generator: gemini returned no content")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("generator: gemini returned non-text content")
	}
	return string(text), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
