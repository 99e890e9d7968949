// Package generator turns free-text meal descriptions into structured
// nutrient data.
//
// The actual nutrient estimation is delegated to a large language model and
// treated as opaque: this package only defines the JSON envelope the model
// must return and validates that the response parses into it. Two real
// backends are provided (Gemini and OpenAI-compatible) plus a mock for
// development and tests. The service layer never knows which one it got —
// it only sees the Generator interface.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/nutrilog/internal/model"
)

// Generator converts meal text into a structured nutrition result.
type Generator interface {
	// Generate analyses a whole meal description.
	Generate(ctx context.Context, description string) (*model.Result, error)

	// GenerateComponent analyses a single food item, used when a component
	// is added to an already-completed draft.
	GenerateComponent(ctx context.Context, description string) (*model.Component, error)

	Close() error
}

const mealPrompt = `You are a nutrition analysis expert. Analyse the meal described below and
estimate its nutritional content.
Return the result strictly as a JSON object with this structure, nothing else:
{
  "name": "Short meal name",
  "components": [
    {"name": "food item", "quantity": "e.g. 2 slices", "nutrients": {"calories": 0, "protein": 0, "carbs": 0, "fat": 0}}
  ]
}
Protein, carbs and fat are grams. If the description is not food, return:
{"error": "reason"}

Meal description:
%s`

const componentPrompt = `You are a nutrition analysis expert. Analyse the single food item described
below and estimate its nutritional content.
Return the result strictly as a JSON object with this structure, nothing else:
{"name": "food item", "quantity": "e.g. 2 slices", "nutrients": {"calories": 0, "protein": 0, "carbs": 0, "fat": 0}}
If the description is not food, return: {"error": "reason"}

Food item:
%s`

// rawResult mirrors the JSON envelope the prompts ask for. The "error" field
// lets the model report non-food input as a generation failure rather than
// hallucinating numbers.
type rawResult struct {
	Name       string         `json:"name"`
	Components []rawComponent `json:"components"`
	Error      string         `json:"error"`
}

type rawComponent struct {
	Name      string          `json:"name"`
	Quantity  string          `json:"quantity"`
	Nutrients model.Nutrients `json:"nutrients"`
}

// parseResult decodes a model response into a Result, assigning component
// IDs and summing totals. Component IDs are issued here, server-side, so
// they follow the same xid scheme as every other identifier.
func parseResult(text string) (*model.Result, error) {
	var raw rawResult
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("generator: parsing model response: %w", err)
	}
	if raw.Error != "" {
		return nil, &GenerationError{Reason: raw.Error}
	}
	if len(raw.Components) == 0 {
		return nil, &GenerationError{Reason: "no food items recognised"}
	}

	result := &model.Result{Name: raw.Name}
	for _, rc := range raw.Components {
		c := model.Component{
			ID:        xid.New().String(),
			Name:      rc.Name,
			Quantity:  rc.Quantity,
			Nutrients: rc.Nutrients,
		}
		result.Components = append(result.Components, c)
		result.Totals = result.Totals.Add(c.Nutrients)
	}
	return result, nil
}

func parseComponent(text string) (*model.Component, error) {
	var raw struct {
		rawComponent
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("generator: parsing model response: %w", err)
	}
	if raw.Error != "" {
		return nil, &GenerationError{Reason: raw.Error}
	}
	return &model.Component{
		ID:        xid.New().String(),
		Name:      raw.Name,
		Quantity:  raw.Quantity,
		Nutrients: raw.Nutrients,
	}, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one. Models do this even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// GenerationError is a definitive generation failure reported by the model
// itself (e.g. the input wasn't food). Unlike transport errors, it is
// terminal: the draft moves to status=error and the message is shown to
// the user.
type GenerationError struct {
	Reason string
}

func (e *GenerationError) Error() string {
	return "generator: " + e.Reason
}
