// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers only know about HTTP; services only know about business rules;
// neither knows any SQL. Services receive repository INTERFACES, not the
// concrete sqlite types, so tests inject in-memory mocks and the wiring in
// internal/server decides the real implementation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/auth"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/repository"
)

// AuthService handles registration, login and Google sign-in.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new email/password account and issues a token.
// New accounts start with the default nutrient targets.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < 8 {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Targets:      model.DefaultTargets,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err // Conflict on duplicate email propagates as-is
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("email", email))

	return s.issue(user)
}

// Login verifies an email/password pair and issues a token.
//
// Both "no such user" and "wrong password" return the same Unauthorized
// error so the response doesn't reveal which emails have accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		// Google-only account — no password to check against.
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issue(user)
}

// LoginWithGoogle handles the Google OAuth callback.
//
// First sign-in creates the account; later sign-ins match on the Google
// subject ID. If an email/password account already exists for the same
// email, the Google identity is linked to it rather than creating a
// duplicate.
func (s *AuthService) LoginWithGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	user, err := s.users.GetByGoogleID(ctx, gUser.ID)
	switch {
	case err == nil:
		// Known Google account.
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.linkOrCreateGoogle(ctx, gUser)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up Google user: %w", err)
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issue(user)
}

func (s *AuthService) linkOrCreateGoogle(ctx context.Context, gUser *auth.GoogleUser) (*model.User, error) {
	existing, err := s.users.GetByEmail(ctx, strings.ToLower(gUser.Email))
	if err == nil {
		existing.GoogleID = gUser.ID
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("service/auth: linking Google identity: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
	}

	user := &model.User{
		Email:    strings.ToLower(gUser.Email),
		Name:     gUser.Name,
		GoogleID: gUser.ID,
		Targets:  model.DefaultTargets,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating Google user: %w", err)
	}
	return user, nil
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/me handler after the middleware validates the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

// UpdateTargets replaces the user's daily nutrient targets.
func (s *AuthService) UpdateTargets(ctx context.Context, userID string, targets model.Nutrients) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if targets.Calories < 0 || targets.Protein < 0 || targets.Carbs < 0 || targets.Fat < 0 {
		return nil, apperror.ValidationFailed("targets", "targets must not be negative")
	}
	user.Targets = targets
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: updating targets: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
