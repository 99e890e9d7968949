package track

import (
	"context"

	"github.com/sakif/nutrilog/internal/model"
)

// StatusChecker is the one read the pollers need: the current server-side
// state of a single draft. Implemented by client.Client.
type StatusChecker interface {
	CheckDraftStatus(ctx context.Context, id string) (*model.Draft, error)
}

// DraftAPI is the full remote surface the per-item poller drives: the
// status read plus the four draft mutations.
type DraftAPI interface {
	StatusChecker
	SaveDraftAsMeal(ctx context.Context, id string) (*model.Meal, error)
	DiscardDraft(ctx context.Context, id string) error
	AddComponentToDraft(ctx context.Context, id, description string) (*model.Draft, error)
	RemoveComponentFromDraft(ctx context.Context, id, componentID string) (*model.Draft, error)
}

// Reconciler receives the fan-out signals fired when a draft leaves the
// pending states. Implementations invalidate or refetch whatever
// server-derived views they maintain; the calls must be cheap and must
// not block, because they run on the pollers' goroutines.
type Reconciler interface {
	// DraftSettled fires exactly once per pending→terminal transition.
	DraftSettled(draft model.Draft)

	// MealSaved fires after a draft was promoted to a permanent meal.
	MealSaved(meal model.Meal)

	// DraftDiscarded fires after a draft was deleted server-side.
	DraftDiscarded(id string)
}

// NopReconciler ignores every signal. Useful when no caches are wired,
// and in tests that only exercise polling.
type NopReconciler struct{}

func (NopReconciler) DraftSettled(model.Draft) {}
func (NopReconciler) MealSaved(model.Meal)     {}
func (NopReconciler) DraftDiscarded(string)    {}
