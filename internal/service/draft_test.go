package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/generator"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/repository"
)

// =========================================================================
// MOCKS
// =========================================================================
//
// Hand-written in-memory fakes for the repository, the generator, and the
// clipper. The service only sees interfaces, so these swap in cleanly and
// let tests control outcomes (including failures) that would be awkward
// to trigger against a real database or a real model API.

type mockDraftRepo struct {
	mu      sync.Mutex
	drafts  map[string]*model.Draft
	nextID  int
	meals   []*model.Meal
	failGet error
}

func newMockDraftRepo() *mockDraftRepo {
	return &mockDraftRepo{drafts: make(map[string]*model.Draft)}
}

func (m *mockDraftRepo) Create(_ context.Context, draft *model.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	draft.ID = fmt.Sprintf("draft-%d", m.nextID)
	draft.CreatedAt = time.Now().Unix()
	stored := *draft
	m.drafts[draft.ID] = &stored
	return nil
}

func (m *mockDraftRepo) GetByID(_ context.Context, id string) (*model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	draft, ok := m.drafts[id]
	if !ok {
		return nil, apperror.NotFound("draft", id)
	}
	copied := *draft
	return &copied, nil
}

func (m *mockDraftRepo) ListByUser(_ context.Context, userID string) ([]model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Draft
	for _, d := range m.drafts {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDraftRepo) Update(_ context.Context, draft *model.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[draft.ID]; !ok {
		return apperror.NotFound("draft", draft.ID)
	}
	stored := *draft
	m.drafts[draft.ID] = &stored
	return nil
}

func (m *mockDraftRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[id]; !ok {
		return apperror.NotFound("draft", id)
	}
	delete(m.drafts, id)
	return nil
}

func (m *mockDraftRepo) Promote(_ context.Context, draft *model.Draft, meal *model.Meal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[draft.ID]; !ok {
		return apperror.NotFound("draft", draft.ID)
	}
	meal.ID = fmt.Sprintf("meal-%d", len(m.meals)+1)
	delete(m.drafts, draft.ID)
	m.meals = append(m.meals, meal)
	return nil
}

// get reads the stored draft directly, bypassing the interface.
func (m *mockDraftRepo) get(id string) (model.Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok {
		return model.Draft{}, false
	}
	return *d, true
}

type mockClipper struct {
	text string
	err  error
}

func (c *mockClipper) Clip(context.Context, string) (string, error) {
	return c.text, c.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDraftService(t *testing.T, repo repository.DraftRepository, gen generator.Generator) *DraftService {
	t.Helper()
	s := NewDraftService(repo, gen, &mockClipper{text: "clipped recipe text"}, 2, testLogger())
	t.Cleanup(s.Close)
	return s
}

// waitForStatus polls the mock repo until the draft reaches the wanted
// status or the deadline passes. Generation is asynchronous, so tests
// observe it the same way a client would.
func waitForStatus(t *testing.T, repo *mockDraftRepo, id string, want model.Status) model.Draft {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := repo.get(id); ok && d.Status == want {
			return d
		}
		time.Sleep(5 * time.Millisecond)
	}
	d, _ := repo.get(id)
	t.Fatalf("draft %s never reached %s (stuck at %s)", id, want, d.Status)
	return model.Draft{}
}

// =========================================================================
// CREATE
// =========================================================================

func TestDraftCreate_Validation(t *testing.T) {
	svc := newTestDraftService(t, newMockDraftRepo(), &generator.Mock{})

	tests := []struct {
		name        string
		description string
		url         string
	}{
		{"both empty", "", ""},
		{"both set", "eggs", "https://example.com/recipe"},
		{"description too long", string(make([]byte, MaxDescriptionLength+1)), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "u1", tt.description, tt.url)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDraftCreate_StartsPendingThenCompletes(t *testing.T) {
	repo := newMockDraftRepo()
	svc := newTestDraftService(t, repo, &generator.Mock{})

	draft, err := svc.Create(context.Background(), "u1", "oatmeal with berries", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if draft.Status != model.StatusPending {
		t.Errorf("created draft status = %s, want pending", draft.Status)
	}
	if draft.Result != nil {
		t.Error("created draft must have no payload yet")
	}

	settled := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	if settled.Result == nil {
		t.Fatal("completed draft has no payload")
	}
	if settled.ErrorMessage != "" {
		t.Errorf("completed draft has error message %q", settled.ErrorMessage)
	}
	if settled.Result.Totals.Calories == 0 {
		t.Error("completed draft has zero totals")
	}
}

func TestDraftCreate_FromURL(t *testing.T) {
	repo := newMockDraftRepo()
	svc := NewDraftService(repo, &generator.Mock{}, &mockClipper{text: "pancakes with maple syrup"}, 2, testLogger())
	t.Cleanup(svc.Close)

	draft, err := svc.Create(context.Background(), "u1", "", "https://example.com/pancakes")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if draft.Description != "pancakes with maple syrup" {
		t.Errorf("Description = %q, want the clipped text", draft.Description)
	}
}

func TestDraftCreate_BadURL(t *testing.T) {
	repo := newMockDraftRepo()
	svc := NewDraftService(repo, &generator.Mock{}, &mockClipper{err: errors.New("404")}, 2, testLogger())
	t.Cleanup(svc.Close)

	_, err := svc.Create(context.Background(), "u1", "", "https://example.com/missing")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

// A definitive generation failure settles the draft to error with the
// model's reason, and no payload.
func TestDraftCreate_GenerationError(t *testing.T) {
	repo := newMockDraftRepo()
	gen := &generator.Mock{Err: &generator.GenerationError{Reason: "that does not look like food"}}
	svc := newTestDraftService(t, repo, gen)

	draft, err := svc.Create(context.Background(), "u1", "a pile of rocks", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	settled := waitForStatus(t, repo, draft.ID, model.StatusError)
	if settled.ErrorMessage != "that does not look like food" {
		t.Errorf("ErrorMessage = %q", settled.ErrorMessage)
	}
	if settled.Result != nil {
		t.Error("errored draft must have no payload")
	}
}

// =========================================================================
// STATUS / LIST / OWNERSHIP
// =========================================================================

func TestDraftStatus_OwnershipEnforced(t *testing.T) {
	repo := newMockDraftRepo()
	svc := newTestDraftService(t, repo, &generator.Mock{})

	draft, _ := svc.Create(context.Background(), "u1", "eggs", "")

	if _, err := svc.Status(context.Background(), "u1", draft.ID); err != nil {
		t.Errorf("owner Status() error = %v", err)
	}
	if _, err := svc.Status(context.Background(), "intruder", draft.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("intruder Status() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Status(context.Background(), "u1", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty id Status() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// SAVE / DISCARD
// =========================================================================

func TestDraftSave(t *testing.T) {
	repo := newMockDraftRepo()
	svc := newTestDraftService(t, repo, &generator.Mock{})

	draft, _ := svc.Create(context.Background(), "u1", "oatmeal with berries", "")
	waitForStatus(t, repo, draft.ID, model.StatusComplete)

	meal, err := svc.Save(context.Background(), "u1", draft.ID)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if meal.ID == "" {
		t.Error("Save() meal has no ID")
	}
	if meal.Totals.Calories == 0 {
		t.Error("Save() meal has zero totals")
	}

	// The draft is gone.
	if _, ok := repo.get(draft.ID); ok {
		t.Error("draft still exists after save")
	}
	// Saving again is NotFound.
	if _, err := svc.Save(context.Background(), "u1", draft.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Save() error = %v, want ErrNotFound", err)
	}
}

func TestDraftSave_RequiresComplete(t *testing.T) {
	repo := newMockDraftRepo()
	gen := &generator.Mock{Err: &generator.GenerationError{Reason: "nope"}}
	svc := newTestDraftService(t, repo, gen)

	draft, _ := svc.Create(context.Background(), "u1", "rocks", "")
	waitForStatus(t, repo, draft.ID, model.StatusError)

	// An errored draft can only be discarded, never saved.
	if _, err := svc.Save(context.Background(), "u1", draft.ID); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Save() of errored draft error = %v, want ErrValidation", err)
	}
}

func TestDraftDiscard(t *testing.T) {
	repo := newMockDraftRepo()
	gen := &generator.Mock{Err: &generator.GenerationError{Reason: "nope"}}
	svc := newTestDraftService(t, repo, gen)

	draft, _ := svc.Create(context.Background(), "u1", "rocks", "")
	waitForStatus(t, repo, draft.ID, model.StatusError)

	if err := svc.Discard(context.Background(), "u1", draft.ID); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, ok := repo.get(draft.ID); ok {
		t.Error("draft still exists after discard")
	}
}

// =========================================================================
// COMPONENT EDITS
// =========================================================================

func TestDraftAddComponent(t *testing.T) {
	repo := newMockDraftRepo()
	svc := newTestDraftService(t, repo, &generator.Mock{})

	draft, _ := svc.Create(context.Background(), "u1", "oatmeal", "")
	completed := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	before := len(completed.Result.Components)

	edited, err := svc.AddComponent(context.Background(), "u1", draft.ID, "a handful of berries")
	if err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	if edited.Status != model.StatusPendingEdit {
		t.Errorf("status during edit = %s, want pending_edit", edited.Status)
	}

	settled := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	if got := len(settled.Result.Components); got != before+1 {
		t.Errorf("components after add = %d, want %d", got, before+1)
	}

	// Totals are recomputed from the component list.
	var sum model.Nutrients
	for _, c := range settled.Result.Components {
		sum = sum.Add(c.Nutrients)
	}
	if settled.Result.Totals != sum {
		t.Errorf("Totals = %+v, want sum of components %+v", settled.Result.Totals, sum)
	}
}

func TestDraftAddComponent_RequiresComplete(t *testing.T) {
	repo := newMockDraftRepo()
	gen := &generator.Mock{Err: &generator.GenerationError{Reason: "nope"}}
	svc := newTestDraftService(t, repo, gen)

	draft, _ := svc.Create(context.Background(), "u1", "rocks", "")
	waitForStatus(t, repo, draft.ID, model.StatusError)

	_, err := svc.AddComponent(context.Background(), "u1", draft.ID, "berries")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("AddComponent() on errored draft error = %v, want ErrValidation", err)
	}
}

func TestDraftRemoveComponent(t *testing.T) {
	repo := newMockDraftRepo()
	svc := newTestDraftService(t, repo, &generator.Mock{})

	draft, _ := svc.Create(context.Background(), "u1", "oatmeal", "")
	waitForStatus(t, repo, draft.ID, model.StatusComplete)

	// Grow to two components so one can be removed.
	if _, err := svc.AddComponent(context.Background(), "u1", draft.ID, "berries"); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	grown := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	if len(grown.Result.Components) != 2 {
		t.Fatalf("setup: %d components, want 2", len(grown.Result.Components))
	}
	removeID := grown.Result.Components[1].ID

	if _, err := svc.RemoveComponent(context.Background(), "u1", draft.ID, removeID); err != nil {
		t.Fatalf("RemoveComponent() error = %v", err)
	}
	shrunk := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	if len(shrunk.Result.Components) != 1 {
		t.Errorf("components after remove = %d, want 1", len(shrunk.Result.Components))
	}
}

// The last component cannot be removed; the draft settles back to
// complete with its payload untouched.
func TestDraftRemoveComponent_KeepsLastComponent(t *testing.T) {
	repo := newMockDraftRepo()
	svc := newTestDraftService(t, repo, &generator.Mock{})

	draft, _ := svc.Create(context.Background(), "u1", "oatmeal", "")
	completed := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	onlyID := completed.Result.Components[0].ID

	if _, err := svc.RemoveComponent(context.Background(), "u1", draft.ID, onlyID); err != nil {
		t.Fatalf("RemoveComponent() error = %v", err)
	}

	settled := waitForStatus(t, repo, draft.ID, model.StatusComplete)
	if len(settled.Result.Components) != 1 {
		t.Errorf("components = %d, want the last one kept", len(settled.Result.Components))
	}
}
