package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/generator"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/repository"
)

const (
	// MaxDescriptionLength bounds the free-text input. Anything longer is
	// almost certainly a paste mistake, and it protects the prompt budget.
	MaxDescriptionLength = 4000

	// generateAttempts is how many times a transient generator failure is
	// retried before the draft is marked errored. Definitive failures
	// (the model says "not food") are never retried.
	generateAttempts = 3
)

// URLClipper extracts a meal description from a web page.
// Implemented by clipper.Clipper; an interface here so tests don't fetch.
type URLClipper interface {
	Clip(ctx context.Context, url string) (string, error)
}

// DraftService owns the server-side draft lifecycle: create → generate
// (async) → complete/error → save or discard.
type DraftService struct {
	drafts  repository.DraftRepository
	gen     generator.Generator
	clipper URLClipper
	pool    *workerPool
	logger  *slog.Logger
}

// NewDraftService creates a DraftService and starts its generation workers.
// Call Close on shutdown to drain them.
func NewDraftService(
	drafts repository.DraftRepository,
	gen generator.Generator,
	clip URLClipper,
	workers int,
	logger *slog.Logger,
) *DraftService {
	s := &DraftService{
		drafts:  drafts,
		gen:     gen,
		clipper: clip,
		pool:    newWorkerPool(0, logger),
		logger:  logger,
	}
	s.pool.Start(workers)
	return s
}

// Close stops the generation workers.
func (s *DraftService) Close() {
	s.pool.Stop()
}

// Create validates the input, inserts a pending draft, and enqueues
// generation. Exactly one of description/url must be set; a url is clipped
// to text first so the generator always sees a description.
//
// The returned draft is status=pending with no payload — the client learns
// the outcome by polling GET /api/drafts/{id}.
func (s *DraftService) Create(ctx context.Context, userID, description, url string) (*model.Draft, error) {
	description = strings.TrimSpace(description)
	url = strings.TrimSpace(url)

	switch {
	case description == "" && url == "":
		return nil, apperror.ValidationFailed("description", "a meal description or url is required")
	case description != "" && url != "":
		return nil, apperror.ValidationFailed("description", "provide a description or a url, not both")
	case len(description) > MaxDescriptionLength:
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	if url != "" {
		clipped, err := s.clipper.Clip(ctx, url)
		if err != nil {
			return nil, apperror.ValidationFailed("url", fmt.Sprintf("could not read %s", url))
		}
		description = clipped
	}

	draft := &model.Draft{
		UserID:      userID,
		Description: description,
		Status:      model.StatusPending,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		s.logger.Error("failed to create draft", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating draft: %w", err)
	}

	s.logger.Info("draft created",
		slog.String("id", draft.ID),
		slog.String("userID", userID),
	)

	id := draft.ID
	s.pool.Enqueue(func(ctx context.Context) { s.generate(ctx, id, description) })

	return draft, nil
}

// generate runs the model call for a new draft and settles its status.
func (s *DraftService) generate(ctx context.Context, draftID, description string) {
	result, err := s.generateWithRetry(ctx, func(ctx context.Context) (*model.Result, error) {
		return s.gen.Generate(ctx, description)
	})
	if err != nil {
		s.settle(ctx, draftID, nil, err)
		return
	}
	s.settle(ctx, draftID, result, nil)
}

// generateWithRetry retries transient failures; a GenerationError is
// definitive and returned straight away.
func (s *DraftService) generateWithRetry(ctx context.Context, call func(context.Context) (*model.Result, error)) (*model.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		var genErr *generator.GenerationError
		if errors.As(err, &genErr) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("generation attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}

// settle writes the generation outcome to the draft row. The draft may
// have been discarded while generation ran; that's fine, the update just
// finds nothing.
func (s *DraftService) settle(ctx context.Context, draftID string, result *model.Result, genErr error) {
	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to load draft for settling", slog.String("id", draftID), slog.String("error", err.Error()))
		}
		return
	}

	if genErr != nil {
		draft.Status = model.StatusError
		draft.Result = nil
		draft.ErrorMessage = userFacingError(genErr)
	} else {
		draft.Status = model.StatusComplete
		draft.Result = result
		draft.ErrorMessage = ""
	}

	if err := s.drafts.Update(ctx, draft); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Error("failed to settle draft", slog.String("id", draftID), slog.String("error", err.Error()))
		return
	}

	s.logger.Info("draft settled",
		slog.String("id", draftID),
		slog.String("status", string(draft.Status)),
	)
}

// userFacingError keeps model-reported reasons but hides transport noise.
func userFacingError(err error) string {
	var genErr *generator.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Reason
	}
	return "nutrition analysis failed, please try again"
}

// Status returns one draft, enforcing ownership. This is the read behind
// the client's status poll, so it must stay cheap: one row lookup.
func (s *DraftService) Status(ctx context.Context, userID, id string) (*model.Draft, error) {
	draft, err := s.ownedDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// List returns all the user's drafts, newest first.
func (s *DraftService) List(ctx context.Context, userID string) ([]model.Draft, error) {
	drafts, err := s.drafts.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list drafts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	return drafts, nil
}

// Save promotes a completed draft to a permanent meal and deletes the
// draft, atomically. Only status=complete drafts can be saved.
func (s *DraftService) Save(ctx context.Context, userID, id string) (*model.Meal, error) {
	draft, err := s.ownedDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if draft.Status != model.StatusComplete {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("draft is %s; only complete drafts can be saved", draft.Status))
	}

	meal := &model.Meal{
		UserID:      userID,
		Name:        draft.Result.Name,
		Description: draft.Description,
		Components:  draft.Result.Components,
		Totals:      draft.Result.Totals,
		ConsumedOn:  time.Unix(draft.CreatedAt, 0).Format("2006-01-02"),
	}

	if err := s.drafts.Promote(ctx, draft, meal); err != nil {
		s.logger.Error("failed to promote draft", slog.String("id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("saving draft: %w", err)
	}

	s.logger.Info("draft saved as meal",
		slog.String("draftID", id),
		slog.String("mealID", meal.ID),
	)
	return meal, nil
}

// Discard deletes a draft in any status. It is the only valid action on an
// errored draft, and the recovery path for a stuck pending one.
func (s *DraftService) Discard(ctx context.Context, userID, id string) error {
	if _, err := s.ownedDraft(ctx, userID, id); err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("draft discarded", slog.String("id", id))
	return nil
}

// AddComponent analyses one more food item and appends it to a completed
// draft. The draft passes through pending_edit while the model call runs.
func (s *DraftService) AddComponent(ctx context.Context, userID, id, description string) (*model.Draft, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperror.ValidationFailed("description", "a component description is required")
	}

	draft, err := s.beginEdit(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.pool.Enqueue(func(ctx context.Context) {
		component, err := s.generateComponentWithRetry(ctx, description)
		s.finishEdit(ctx, draft.ID, func(result *model.Result) error {
			if err != nil {
				return err
			}
			result.Components = append(result.Components, *component)
			recomputeTotals(result)
			return nil
		})
	})

	return draft, nil
}

// RemoveComponent deletes one component from a completed draft and
// recomputes the totals. No model call is needed, but the edit still runs
// through pending_edit so clients observe one consistent lifecycle.
func (s *DraftService) RemoveComponent(ctx context.Context, userID, id, componentID string) (*model.Draft, error) {
	draft, err := s.beginEdit(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.pool.Enqueue(func(ctx context.Context) {
		s.finishEdit(ctx, draft.ID, func(result *model.Result) error {
			idx := -1
			for i, c := range result.Components {
				if c.ID == componentID {
					idx = i
					break
				}
			}
			if idx < 0 {
				return apperror.NotFound("component", componentID)
			}
			if len(result.Components) == 1 {
				return apperror.ValidationFailed("componentId", "a draft must keep at least one component")
			}
			result.Components = append(result.Components[:idx], result.Components[idx+1:]...)
			recomputeTotals(result)
			return nil
		})
	})

	return draft, nil
}

// beginEdit checks ownership, requires status=complete, and moves the
// draft to pending_edit. pending_edit is only reachable from complete.
func (s *DraftService) beginEdit(ctx context.Context, userID, id string) (*model.Draft, error) {
	draft, err := s.ownedDraft(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if draft.Status != model.StatusComplete {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("draft is %s; only complete drafts can be edited", draft.Status))
	}

	draft.Status = model.StatusPendingEdit
	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("starting draft edit: %w", err)
	}
	return draft, nil
}

// finishEdit applies the edit to the draft's result and settles it back to
// complete. A failed edit restores the draft unchanged — an edit failure
// must not destroy a good result, so the draft returns to complete and the
// error is only logged (clients see the payload they already had).
func (s *DraftService) finishEdit(ctx context.Context, draftID string, apply func(*model.Result) error) {
	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to load draft for edit", slog.String("id", draftID), slog.String("error", err.Error()))
		}
		return
	}
	if draft.Status != model.StatusPendingEdit || draft.Result == nil {
		// Discarded or otherwise moved on while the edit ran.
		return
	}

	if err := apply(draft.Result); err != nil {
		s.logger.Warn("draft edit failed, keeping previous result",
			slog.String("id", draftID),
			slog.String("error", err.Error()),
		)
	}

	draft.Status = model.StatusComplete
	if err := s.drafts.Update(ctx, draft); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Error("failed to finish draft edit", slog.String("id", draftID), slog.String("error", err.Error()))
	}
}

func (s *DraftService) generateComponentWithRetry(ctx context.Context, description string) (*model.Component, error) {
	var lastErr error
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		component, err := s.gen.GenerateComponent(ctx, description)
		if err == nil {
			return component, nil
		}
		var genErr *generator.GenerationError
		if errors.As(err, &genErr) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}

// ownedDraft fetches a draft and verifies the caller owns it.
func (s *DraftService) ownedDraft(ctx context.Context, userID, id string) (*model.Draft, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "draft ID is required")
	}
	draft, err := s.drafts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.UserID != userID {
		return nil, apperror.Forbidden("draft belongs to another user")
	}
	return draft, nil
}

func recomputeTotals(result *model.Result) {
	var totals model.Nutrients
	for _, c := range result.Components {
		totals = totals.Add(c.Nutrients)
	}
	result.Totals = totals
}
