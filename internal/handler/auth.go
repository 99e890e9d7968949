package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/auth"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/service"
)

// AuthHandler manages registration, login, and the Google OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account with email + password
//   - HandleLogin          → verify credentials, issue JWT
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → receive the code, exchange it for a user, issue JWT
//   - HandleMe             → return the currently logged-in user's profile
//   - HandleUpdateTargets  → change the user's daily nutrition targets
//
// TOKEN DELIVERY:
// The primary client is a terminal program, so tokens are returned in the
// JSON body and sent back as an Authorization: Bearer header. Cookies only
// appear in the OAuth flow, where a browser is unavoidably involved.
type AuthHandler struct {
	google  *auth.GoogleProvider
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(google *auth.GoogleProvider, svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{google: google, service: svc, logger: logger}
}

// credentialsRequest is the body for both register and login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// authResponse is what a successful register/login returns.
type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "a@b.c", "name": "Ada", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, User: result.User})
}

// HandleLogin verifies credentials and issues a JWT.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "a@b.c", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When Google calls back, HandleGoogleCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	// Generate a random, unguessable state value
	state := xid.New().String()

	// Store it in a cookie so we can verify it on callback
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect the browser to Google
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google user profile
//  3. Find-or-create the user (linking by email if they registered first)
//  4. Issue a JWT and show it to the user to paste into the CLI
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if Google sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Error(w, "authorization denied", http.StatusForbidden)
		return
	}

	// --- Step 2: Exchange code for Google user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 3 + 4: Find-or-create the user and issue a token ---
	result, err := h.service.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user logged in via Google",
		slog.String("userID", result.User.ID),
		slog.String("email", result.User.Email),
	)

	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// HandleMe returns the current user's profile.
//
// HTTP: GET /api/me (requires auth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateTargets changes the user's daily nutrition targets.
//
// HTTP: PUT /api/me/targets (requires auth)
// REQUEST BODY: {"calories": 2200, "protein": 120, "carbs": 250, "fat": 70}
func (h *AuthHandler) HandleUpdateTargets(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	var targets model.Nutrients
	if err := json.NewDecoder(r.Body).Decode(&targets); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.service.UpdateTargets(r.Context(), userID, targets)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
