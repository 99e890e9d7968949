package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// Using ":memory:" creates a fresh database that exists only during the test.
// Benefits:
// - Fast: no disk I/O
// - Isolated: each test gets its own database
// - Clean: automatically destroyed when the connection closes
//
// newTestDB is a "test helper" — a function used only in tests to reduce boilerplate.
// The `t.Helper()` call tells Go's test framework to report errors at the CALLER's
// line number, not inside this function. This makes test failure output much clearer.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser satisfies the drafts/meals foreign key on users.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, Name: "Test User", Targets: model.DefaultTargets}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestDraft(t *testing.T, db *DB, userID, description string) *model.Draft {
	t.Helper()
	draft := &model.Draft{UserID: userID, Description: description}
	if err := db.Drafts().Create(context.Background(), draft); err != nil {
		t.Fatalf("failed to create test draft: %v", err)
	}
	return draft
}

func testResult() *model.Result {
	return &model.Result{
		Name: "Oatmeal with Berries",
		Components: []model.Component{
			{ID: "c1", Name: "Oatmeal", Quantity: "1 bowl", Nutrients: model.Nutrients{Calories: 300, Protein: 10, Carbs: 54, Fat: 5}},
			{ID: "c2", Name: "Berries", Quantity: "a handful", Nutrients: model.Nutrients{Calories: 80, Carbs: 20}},
		},
		Totals: model.Nutrients{Calories: 380, Protein: 10, Carbs: 74, Fat: 5},
	}
}

func TestDraftCreate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	draft := &model.Draft{UserID: user.ID, Description: "two eggs and toast"}
	if err := db.Drafts().Create(context.Background(), draft); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if draft.ID == "" {
		t.Error("Create() did not set draft.ID")
	}
	if draft.CreatedAt == 0 {
		t.Error("Create() did not set draft.CreatedAt")
	}
	if draft.Status != model.StatusPending {
		t.Errorf("Create() status = %s, want pending", draft.Status)
	}
}

func TestDraftGetByID(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	created := createTestDraft(t, db, user.ID, "two eggs and toast")

	got, err := db.Drafts().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Description != "two eggs and toast" {
		t.Errorf("Description = %q", got.Description)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	// A pending draft has no payload and no error.
	if got.Result != nil {
		t.Errorf("pending draft has Result = %+v, want nil", got.Result)
	}
	if got.ErrorMessage != "" {
		t.Errorf("pending draft has ErrorMessage = %q, want empty", got.ErrorMessage)
	}
}

func TestDraftGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Drafts().GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestDraftUpdate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	draft := createTestDraft(t, db, user.ID, "oatmeal with berries")

	// Settle the draft to complete with a payload.
	draft.Status = model.StatusComplete
	draft.Result = testResult()
	if err := db.Drafts().Update(context.Background(), draft); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.Drafts().GetByID(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("GetByID() after update error = %v", err)
	}
	if got.Status != model.StatusComplete {
		t.Errorf("Status = %s, want complete", got.Status)
	}
	if got.Result == nil {
		t.Fatal("Result not persisted")
	}
	if got.Result.Name != "Oatmeal with Berries" {
		t.Errorf("Result.Name = %q", got.Result.Name)
	}
	if len(got.Result.Components) != 2 {
		t.Errorf("Components = %d, want 2", len(got.Result.Components))
	}
	if got.Result.Totals.Calories != 380 {
		t.Errorf("Totals.Calories = %v, want 380", got.Result.Totals.Calories)
	}
}

func TestDraftUpdate_Error(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	draft := createTestDraft(t, db, user.ID, "a rock")

	draft.Status = model.StatusError
	draft.ErrorMessage = "that does not look like food"
	if err := db.Drafts().Update(context.Background(), draft); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := db.Drafts().GetByID(context.Background(), draft.ID)
	if got.Status != model.StatusError {
		t.Errorf("Status = %s, want error", got.Status)
	}
	// Terminal invariant: exactly one of result and error message is set.
	if got.Result != nil {
		t.Errorf("errored draft has Result = %+v, want nil", got.Result)
	}
	if got.ErrorMessage == "" {
		t.Error("errored draft has no ErrorMessage")
	}
}

func TestDraftUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	ghost := &model.Draft{ID: "no-such-id", Status: model.StatusComplete}
	err := db.Drafts().Update(context.Background(), ghost)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDraftListByUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestDraft(t, db, alice.ID, "breakfast")
	createTestDraft(t, db, alice.ID, "lunch")
	createTestDraft(t, db, bob.ID, "dinner")

	drafts, err := db.Drafts().ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("ListByUser() returned %d drafts, want 2", len(drafts))
	}
	for _, d := range drafts {
		if d.UserID != alice.ID {
			t.Errorf("draft %s belongs to %s, want %s", d.ID, d.UserID, alice.ID)
		}
	}
}

func TestDraftDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	draft := createTestDraft(t, db, user.ID, "two eggs")

	if err := db.Drafts().Delete(context.Background(), draft.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := db.Drafts().GetByID(context.Background(), draft.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting again is NotFound, not a silent success.
	if err := db.Drafts().Delete(context.Background(), draft.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

// Promote is the save operation: one transaction inserts the meal and
// deletes the draft, so neither can exist without the other afterwards.
func TestDraftPromote(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	draft := createTestDraft(t, db, user.ID, "oatmeal with berries")

	draft.Status = model.StatusComplete
	draft.Result = testResult()
	if err := db.Drafts().Update(context.Background(), draft); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	meal := &model.Meal{
		UserID:      user.ID,
		Name:        draft.Result.Name,
		Description: draft.Description,
		Components:  draft.Result.Components,
		Totals:      draft.Result.Totals,
		ConsumedOn:  "2026-08-31",
	}
	if err := db.Drafts().Promote(context.Background(), draft, meal); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	// The draft is gone.
	if _, err := db.Drafts().GetByID(context.Background(), draft.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("draft still present after promote: err = %v", err)
	}

	// The meal exists with the draft's payload.
	if meal.ID == "" {
		t.Fatal("Promote() did not assign meal.ID")
	}
	got, err := db.Meals().GetByID(context.Background(), meal.ID)
	if err != nil {
		t.Fatalf("Meals().GetByID() error = %v", err)
	}
	if got.Name != "Oatmeal with Berries" {
		t.Errorf("meal Name = %q", got.Name)
	}
	if got.Totals.Calories != 380 {
		t.Errorf("meal Totals.Calories = %v, want 380", got.Totals.Calories)
	}
	if len(got.Components) != 2 {
		t.Errorf("meal Components = %d, want 2", len(got.Components))
	}
}

// A promote of an already-promoted draft must fail and must not insert a
// second meal.
func TestDraftPromote_Twice(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	draft := createTestDraft(t, db, user.ID, "oatmeal")
	draft.Status = model.StatusComplete
	draft.Result = testResult()
	if err := db.Drafts().Update(context.Background(), draft); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	first := &model.Meal{UserID: user.ID, Name: "Oatmeal", ConsumedOn: "2026-08-31", Components: draft.Result.Components}
	if err := db.Drafts().Promote(context.Background(), draft, first); err != nil {
		t.Fatalf("first Promote() error = %v", err)
	}

	second := &model.Meal{UserID: user.ID, Name: "Oatmeal", ConsumedOn: "2026-08-31", Components: draft.Result.Components}
	err := db.Drafts().Promote(context.Background(), draft, second)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("second Promote() error = %v, want ErrNotFound", err)
	}

	meals, err := db.Meals().ListByUser(context.Background(), user.ID, listAll())
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(meals) != 1 {
		t.Fatalf("found %d meals after double promote, want 1", len(meals))
	}
}
