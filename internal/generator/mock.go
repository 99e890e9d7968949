package generator

import (
	"context"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/nutrilog/internal/model"
)

var _ Generator = (*Mock)(nil)

// Mock is a Generator that returns deterministic canned data without
// calling any external model. Used with GENERATOR=mock for local
// development and throughout the tests.
//
// Err, when set, is returned by every call — handy for simulating both
// transport failures and terminal generation failures (set it to a
// *GenerationError for the latter).
type Mock struct {
	Err error
}

func (m *Mock) Generate(_ context.Context, description string) (*model.Result, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	c := mockComponent(description)
	return &model.Result{
		Name:       mealName(description),
		Components: []model.Component{c},
		Totals:     c.Nutrients,
	}, nil
}

func (m *Mock) GenerateComponent(_ context.Context, description string) (*model.Component, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	c := mockComponent(description)
	return &c, nil
}

func (m *Mock) Close() error { return nil }

func mockComponent(description string) model.Component {
	return model.Component{
		ID:       xid.New().String(),
		Name:     mealName(description),
		Quantity: "1 serving",
		Nutrients: model.Nutrients{
			Calories: 250,
			Protein:  10,
			Carbs:    30,
			Fat:      9,
		},
	}
}

// mealName derives a short display name from the first few words of the
// description.
func mealName(description string) string {
	words := strings.Fields(description)
	if len(words) > 4 {
		words = words[:4]
	}
	if len(words) == 0 {
		return "Meal"
	}
	return strings.Join(words, " ")
}
