package generator

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sakif/nutrilog/internal/model"
)

var _ Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator runs nutrition analysis through the OpenAI chat
// completions API (or any OpenAI-compatible endpoint via baseURL).
type OpenAIGenerator struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAI creates an OpenAI-backed generator. baseURL may be empty for
// the default api.openai.com endpoint.
func NewOpenAI(apiKey, baseURL string) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT4oMini,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, description string) (*model.Result, error) {
	text, err := g.complete(ctx, fmt.Sprintf(mealPrompt, description))
	if err != nil {
		return nil, err
	}
	return parseResult(text)
}

func (g *OpenAIGenerator) GenerateComponent(ctx context.Context, description string) (*model.Component, error) {
	text, err := g.complete(ctx, fmt.Sprintf(componentPrompt, description))
	if err != nil {
		return nil, err
	}
	return parseComponent(text)
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generator: openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generator: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close satisfies Generator; the openai client holds no connection state.
func (g *OpenAIGenerator) Close() error {
	return nil
}
