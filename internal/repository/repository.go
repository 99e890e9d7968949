package repository

import (
	"context"

	"github.com/sakif/nutrilog/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// DraftRepository stores in-flight meal drafts. The server-side draft table
// is authoritative: clients keep their own optimistic copies, but whatever
// is here wins on any fetch.
type DraftRepository interface {
	Create(ctx context.Context, draft *model.Draft) error
	GetByID(ctx context.Context, id string) (*model.Draft, error)
	ListByUser(ctx context.Context, userID string) ([]model.Draft, error)
	Update(ctx context.Context, draft *model.Draft) error
	Delete(ctx context.Context, id string) error

	// Promote atomically inserts the meal and deletes the draft.
	// Saving must never leave both records, or neither.
	Promote(ctx context.Context, draft *model.Draft, meal *model.Meal) error
}

// MealRepository stores permanent meal records.
type MealRepository interface {
	GetByID(ctx context.Context, id string) (*model.Meal, error)
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Meal, error)

	// ListByUserBetween returns meals consumed on dates in [from, to],
	// both "2006-01-02" inclusive. Used by the summary queries.
	ListByUserBetween(ctx context.Context, userID, from, to string) ([]model.Meal, error)

	// DistinctDates returns the distinct consumed_on dates for a user in
	// descending order. Used by the streak computation.
	DistinctDates(ctx context.Context, userID string) ([]string, error)

	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}
