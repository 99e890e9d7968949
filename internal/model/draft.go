// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

// Status describes where a draft is in its generation lifecycle.
//
// The lifecycle is deliberately small:
//
//	pending      → generation in progress, no payload yet
//	complete     → payload available, awaiting save or discard
//	error        → generation failed, only discard is valid
//	pending_edit → a completed draft whose components are being re-edited;
//	               behaves like pending for polling purposes, but is only
//	               reachable from complete
//
// Transitions are monotonic: a draft never returns to pending from a
// terminal state. The single exception is complete → pending_edit, which
// exists so component add/remove edits can re-run generation for the delta.
type Status string

const (
	StatusPending     Status = "pending"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
	StatusPendingEdit Status = "pending_edit"
)

// IsPending reports whether a draft in this status still needs polling.
// pending_edit counts: the server is working on it and the client must
// keep checking until it settles back to complete (or error).
func (s Status) IsPending() bool {
	return s == StatusPending || s == StatusPendingEdit
}

// IsTerminal reports whether the status is a resting state.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusComplete, StatusError, StatusPendingEdit:
		return true
	}
	return false
}

// Draft represents one in-flight or completed meal-description-to-nutrition
// conversion. The ID is server-issued (xid), assigned once at creation and
// never reused.
//
// INVARIANT: once the status is terminal, exactly one of Result / ErrorMessage
// is populated. While pending, both are empty.
type Draft struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	Description  string  `json:"description"` // original free-text input, immutable
	Status       Status  `json:"status"`
	Result       *Result `json:"result,omitempty"`       // nil until status leaves pending
	ErrorMessage string  `json:"errorMessage,omitempty"` // set only on status=error
	CreatedAt    int64   `json:"createdAt"`              // unix seconds, used for sort order
}

// Result is the structured payload produced by the generator for a draft.
// Its nutrient numbers are opaque to this application — we store and sum
// them, we never compute them.
type Result struct {
	Name       string      `json:"name"`
	Components []Component `json:"components"`
	Totals     Nutrients   `json:"totals"`
}

// Component is one recognised food item within a draft or meal.
type Component struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  string    `json:"quantity"` // free-form, e.g. "2 slices", "150 g"
	Nutrients Nutrients `json:"nutrients"`
}

// Nutrients holds the macro totals for a component, meal, or day.
type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"` // grams
	Carbs    float64 `json:"carbs"`   // grams
	Fat      float64 `json:"fat"`     // grams
}

// Add returns the element-wise sum of two nutrient totals.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories: n.Calories + o.Calories,
		Protein:  n.Protein + o.Protein,
		Carbs:    n.Carbs + o.Carbs,
		Fat:      n.Fat + o.Fat,
	}
}
