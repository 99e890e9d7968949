// Package client is the typed HTTP client for the nutrilog API, used by
// cmd/mealctl and by the track pollers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/model"
)

// Client talks to one nutrilog server with one bearer token.
//
// PRECONDITION FAILURES:
// A missing token or a blank id is a usage error, not a retryable
// condition — those reject immediately, before any network call, so a
// misconfigured caller fails fast instead of hammering the server. Real
// server errors come back as the API's {error, message} JSON and are
// mapped onto the same apperror sentinels the server raised them with.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client. The token may be empty for the unauthenticated
// auth endpoints; everything else will reject until SetToken is called.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			// LLM-backed endpoints are slow; everything else finishes
			// well inside this.
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken installs the bearer token after a login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// errorResponse mirrors the server's error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// authResponse mirrors the server's register/login body.
type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates an account and returns the issued token.
func (c *Client) Register(ctx context.Context, email, name, password string) (string, *model.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}, &resp, false)
	if err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, false)
	if err != nil {
		return "", nil, err
	}
	return resp.Token, resp.User, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateDraft starts async generation from a free-text description or a
// recipe URL (exactly one must be set; the server validates).
func (c *Client) CreateDraft(ctx context.Context, description, rawURL string) (*model.Draft, error) {
	var draft model.Draft
	body := map[string]string{}
	if description != "" {
		body["description"] = description
	}
	if rawURL != "" {
		body["url"] = rawURL
	}
	if err := c.do(ctx, http.MethodPost, "/api/drafts", body, &draft, true); err != nil {
		return nil, err
	}
	return &draft, nil
}

// CheckDraftStatus is the idempotent read the pollers drive. Given an
// id, it returns the draft's current server-side state.
func (c *Client) CheckDraftStatus(ctx context.Context, id string) (*model.Draft, error) {
	if err := c.requireID("draft", id); err != nil {
		return nil, err
	}
	var draft model.Draft
	if err := c.do(ctx, http.MethodGet, "/api/drafts/"+url.PathEscape(id), nil, &draft, true); err != nil {
		return nil, err
	}
	return &draft, nil
}

// ListDrafts returns the authoritative draft list.
func (c *Client) ListDrafts(ctx context.Context) ([]model.Draft, error) {
	var drafts []model.Draft
	if err := c.do(ctx, http.MethodGet, "/api/drafts", nil, &drafts, true); err != nil {
		return nil, err
	}
	return drafts, nil
}

// SaveDraftAsMeal promotes a completed draft to a permanent meal. The
// draft is gone server-side afterwards.
func (c *Client) SaveDraftAsMeal(ctx context.Context, id string) (*model.Meal, error) {
	if err := c.requireID("draft", id); err != nil {
		return nil, err
	}
	var meal model.Meal
	if err := c.do(ctx, http.MethodPost, "/api/drafts/"+url.PathEscape(id)+"/save", nil, &meal, true); err != nil {
		return nil, err
	}
	return &meal, nil
}

// DiscardDraft deletes a draft server-side.
func (c *Client) DiscardDraft(ctx context.Context, id string) error {
	if err := c.requireID("draft", id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/drafts/"+url.PathEscape(id), nil, nil, true)
}

// AddComponentToDraft sends one more item for analysis; the returned
// draft is in pending_edit.
func (c *Client) AddComponentToDraft(ctx context.Context, id, description string) (*model.Draft, error) {
	if err := c.requireID("draft", id); err != nil {
		return nil, err
	}
	var draft model.Draft
	err := c.do(ctx, http.MethodPost, "/api/drafts/"+url.PathEscape(id)+"/components",
		map[string]string{"description": description}, &draft, true)
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// RemoveComponentFromDraft deletes one component from a completed draft.
func (c *Client) RemoveComponentFromDraft(ctx context.Context, id, componentID string) (*model.Draft, error) {
	if err := c.requireID("draft", id); err != nil {
		return nil, err
	}
	if err := c.requireID("component", componentID); err != nil {
		return nil, err
	}
	var draft model.Draft
	err := c.do(ctx, http.MethodDelete,
		"/api/drafts/"+url.PathEscape(id)+"/components/"+url.PathEscape(componentID), nil, &draft, true)
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// ListMeals returns saved meals, newest first.
func (c *Client) ListMeals(ctx context.Context, limit, offset int) ([]model.Meal, error) {
	path := fmt.Sprintf("/api/meals?limit=%d&offset=%d", limit, offset)
	var meals []model.Meal
	if err := c.do(ctx, http.MethodGet, path, nil, &meals, true); err != nil {
		return nil, err
	}
	return meals, nil
}

// DailySummary returns one day's totals; empty date means today.
func (c *Client) DailySummary(ctx context.Context, date string) (*model.DailySummary, error) {
	path := "/api/summary/daily"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var summary model.DailySummary
	if err := c.do(ctx, http.MethodGet, path, nil, &summary, true); err != nil {
		return nil, err
	}
	return &summary, nil
}

// WeeklySummary returns the Monday-to-Sunday week containing the date.
func (c *Client) WeeklySummary(ctx context.Context, date string) (*model.WeeklySummary, error) {
	path := "/api/summary/weekly"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var summary model.WeeklySummary
	if err := c.do(ctx, http.MethodGet, path, nil, &summary, true); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Streak returns the consecutive-days logging streak.
func (c *Client) Streak(ctx context.Context) (*model.Streak, error) {
	var streak model.Streak
	if err := c.do(ctx, http.MethodGet, "/api/account/streak", nil, &streak, true); err != nil {
		return nil, err
	}
	return &streak, nil
}

func (c *Client) requireID(what, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed("id", what+" ID is required")
	}
	return nil
}

// do runs one request/response cycle: marshal the body if any, attach
// the bearer token for authenticated paths, and decode either the
// expected payload or the server's error body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authed bool) error {
	if authed && c.token == "" {
		return apperror.Unauthorized("no token; run `mealctl login` first")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.apiError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// apiError turns the server's {error, message} body back into the
// apperror value the server mapped it from, so callers can errors.Is on
// the same sentinels on both sides of the wire.
func (c *Client) apiError(resp *http.Response) error {
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	switch body.Error {
	case "validation_error":
		return &apperror.AppError{Err: apperror.ErrValidation, Message: body.Message}
	case "not_found":
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: body.Message}
	case "unauthorized":
		return &apperror.AppError{Err: apperror.ErrUnauthorized, Message: body.Message}
	case "forbidden":
		return &apperror.AppError{Err: apperror.ErrForbidden, Message: body.Message}
	case "conflict":
		return &apperror.AppError{Err: apperror.ErrConflict, Message: body.Message}
	default:
		return fmt.Errorf("server error: %s", body.Message)
	}
}
