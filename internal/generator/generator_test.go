package generator

import (
	"errors"
	"testing"
)

func TestParseResult(t *testing.T) {
	text := `{
		"name": "Chicken Salad",
		"components": [
			{"name": "grilled chicken", "quantity": "150 g", "nutrients": {"calories": 240, "protein": 45, "carbs": 0, "fat": 5}},
			{"name": "mixed greens", "quantity": "1 bowl", "nutrients": {"calories": 30, "protein": 2, "carbs": 6, "fat": 0}}
		]
	}`

	result, err := parseResult(text)
	if err != nil {
		t.Fatalf("parseResult() error = %v", err)
	}
	if result.Name != "Chicken Salad" {
		t.Errorf("Name = %q", result.Name)
	}
	if len(result.Components) != 2 {
		t.Fatalf("got %d components, want 2", len(result.Components))
	}
	if result.Components[0].ID == "" || result.Components[0].ID == result.Components[1].ID {
		t.Error("component IDs must be assigned and unique")
	}
	if result.Totals.Calories != 270 {
		t.Errorf("Totals.Calories = %v, want 270", result.Totals.Calories)
	}
	if result.Totals.Protein != 47 {
		t.Errorf("Totals.Protein = %v, want 47", result.Totals.Protein)
	}
}

func TestParseResult_ModelReportedError(t *testing.T) {
	_, err := parseResult(`{"error": "this does not describe food"}`)

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want GenerationError", err)
	}
	if genErr.Reason != "this does not describe food" {
		t.Errorf("Reason = %q", genErr.Reason)
	}
}

func TestParseResult_EmptyComponents(t *testing.T) {
	_, err := parseResult(`{"name": "Mystery", "components": []}`)

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want GenerationError", err)
	}
}

func TestParseResult_Garbage(t *testing.T) {
	_, err := parseResult(`I'm sorry, I can't help with that.`)
	if err == nil {
		t.Fatal("expected an error for a non-JSON response")
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		t.Error("malformed output is a transport problem, not a definitive refusal")
	}
}

func TestParseComponent(t *testing.T) {
	c, err := parseComponent(`{"name": "sourdough slice", "quantity": "1 slice", "nutrients": {"calories": 110, "protein": 4, "carbs": 20, "fat": 1}}`)
	if err != nil {
		t.Fatalf("parseComponent() error = %v", err)
	}
	if c.ID == "" {
		t.Error("component ID not assigned")
	}
	if c.Name != "sourdough slice" || c.Nutrients.Calories != 110 {
		t.Errorf("component = %+v", c)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMockGeneratorShapesOutput(t *testing.T) {
	m := &Mock{}
	result, err := m.Generate(t.Context(), "oatmeal with blueberries and honey drizzle")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Name == "" {
		t.Error("mock result has no name")
	}
	if len(result.Components) == 0 {
		t.Fatal("mock result has no components")
	}
	var calories float64
	for _, c := range result.Components {
		calories += c.Nutrients.Calories
	}
	if result.Totals.Calories != calories {
		t.Errorf("Totals.Calories = %v, component sum = %v", result.Totals.Calories, calories)
	}
}
