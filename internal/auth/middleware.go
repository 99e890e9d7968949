package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// errMissingToken means no Authorization header was presented at all.
var errMissingToken = errors.New("auth: no bearer token")

// contextKey is an unexported type used for context keys in this package.
//
// context.WithValue uses any as the key type. If you use a plain string like
// "userID", ANY package that knows the string can read or shadow your value.
// A package-private type prevents collisions: only this package can create a
// key of type contextKey.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "Authorization: Bearer <token>" header, validates
// it, and stores the userID in the request context. If the token is missing
// or invalid, it returns 401 Unauthorized and stops the request chain.
//
// A missing credential is a precondition failure, not a retryable error:
// clients must not retry a 401 — they must obtain a new token.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthorized","message":"valid bearer token required"}`, http.StatusUnauthorized)
				return
			}

			// Store userID in context so handlers can read it
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithUserID returns a context carrying the given user ID, exactly as
// RequireAuth would have stored it. Handler tests use this to simulate an
// authenticated request without minting a real token.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous (no valid token was present).
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous — only possible on routes without RequireAuth
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID reads and validates the bearer token from the
// Authorization header.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return "", errMissingToken
	}

	return tokens.Validate(tokenStr)
}
