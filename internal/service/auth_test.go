package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/auth"
	"github.com/sakif/nutrilog/internal/model"
)

func newTestAuthService(t *testing.T, users *mockUserRepo) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("failed to create token service: %v", err)
	}
	// MinCost makes bcrypt fast; the real cost is only for production.
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	return NewAuthService(users, tokens, passwords, testLogger())
}

func TestRegister(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	result, err := svc.Register(context.Background(), "Ada@Example.com", "Ada", "correct horse battery")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Register() issued no token")
	}
	if result.User.Email != "ada@example.com" {
		t.Errorf("email not normalised: %q", result.User.Email)
	}
	if result.User.Targets != model.DefaultTargets {
		t.Errorf("new user targets = %+v, want defaults", result.User.Targets)
	}
	if result.User.PasswordHash == "correct horse battery" {
		t.Error("password stored in plaintext")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestAuthService(t, newMockUserRepo())

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "longenough"},
		{"not an email", "nope", "longenough"},
		{"short password", "a@example.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.email, "", tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	if _, err := svc.Register(context.Background(), "a@example.com", "", "longenough"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(context.Background(), "a@example.com", "", "longenough")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestLogin(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	if _, err := svc.Register(context.Background(), "a@example.com", "", "longenough"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.Login(context.Background(), "a@example.com", "longenough")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Login() issued no token")
	}
}

// Bad email and bad password must be indistinguishable to the caller.
func TestLogin_UniformFailure(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	if _, err := svc.Register(context.Background(), "a@example.com", "", "longenough"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, errNoUser := svc.Login(context.Background(), "nobody@example.com", "longenough")
	_, errBadPass := svc.Login(context.Background(), "a@example.com", "wrong password")

	if !errors.Is(errNoUser, apperror.ErrUnauthorized) {
		t.Errorf("unknown email error = %v, want ErrUnauthorized", errNoUser)
	}
	if !errors.Is(errBadPass, apperror.ErrUnauthorized) {
		t.Errorf("wrong password error = %v, want ErrUnauthorized", errBadPass)
	}
	if errNoUser.Error() != errBadPass.Error() {
		t.Errorf("failure messages differ: %q vs %q", errNoUser, errBadPass)
	}
}

func TestLoginWithGoogle_CreatesThenMatches(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	gUser := &auth.GoogleUser{ID: "google-123", Email: "Ada@Example.com", Name: "Ada"}

	first, err := svc.LoginWithGoogle(context.Background(), gUser)
	if err != nil {
		t.Fatalf("first LoginWithGoogle() error = %v", err)
	}
	if first.User.Email != "ada@example.com" {
		t.Errorf("email not normalised: %q", first.User.Email)
	}

	second, err := svc.LoginWithGoogle(context.Background(), gUser)
	if err != nil {
		t.Fatalf("second LoginWithGoogle() error = %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("second sign-in created a new account: %s vs %s", second.User.ID, first.User.ID)
	}
}

// A Google sign-in for an email that already has a password account
// links the identities instead of creating a duplicate.
func TestLoginWithGoogle_LinksExistingAccount(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	registered, err := svc.Register(context.Background(), "a@example.com", "Ada", "longenough")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		ID: "google-123", Email: "a@example.com", Name: "Ada",
	})
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}
	if result.User.ID != registered.User.ID {
		t.Errorf("Google sign-in created a duplicate account")
	}

	// Password login still works after linking.
	if _, err := svc.Login(context.Background(), "a@example.com", "longenough"); err != nil {
		t.Errorf("password Login() after linking error = %v", err)
	}
}

// An account created through Google has no password; password login for
// it must fail closed, not crash on the empty hash.
func TestLogin_GoogleOnlyAccount(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	if _, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		ID: "google-123", Email: "a@example.com",
	}); err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}

	_, err := svc.Login(context.Background(), "a@example.com", "anything at all")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() for Google-only account error = %v, want ErrUnauthorized", err)
	}
}

func TestUpdateTargets(t *testing.T) {
	users := newMockUserRepo()
	user := users.add("u1")
	svc := newTestAuthService(t, users)

	updated, err := svc.UpdateTargets(context.Background(), user.ID, model.Nutrients{Calories: 2500, Protein: 150})
	if err != nil {
		t.Fatalf("UpdateTargets() error = %v", err)
	}
	if updated.Targets.Calories != 2500 {
		t.Errorf("Calories = %v, want 2500", updated.Targets.Calories)
	}

	_, err = svc.UpdateTargets(context.Background(), user.ID, model.Nutrients{Calories: -1})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("negative targets error = %v, want ErrValidation", err)
	}
}
