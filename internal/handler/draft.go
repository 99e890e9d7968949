package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/auth"
	"github.com/sakif/nutrilog/internal/service"
)

// DraftHandler exposes the draft lifecycle over HTTP.
//
// A draft is created from a free-text description (or a recipe URL), starts
// in status "pending" while the analysis runs in the background, and is then
// polled by the client until it settles. All endpoints require auth; every
// operation additionally checks the draft belongs to the caller.
type DraftHandler struct {
	service *service.DraftService
	logger  *slog.Logger
}

func NewDraftHandler(svc *service.DraftService, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{service: svc, logger: logger}
}

type createDraftRequest struct {
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type addComponentRequest struct {
	Description string `json:"description"`
}

// HandleCreate starts a new draft.
//
// HTTP: POST /api/drafts
// REQUEST BODY: {"description": "chicken salad with avocado"}
//
//	or {"url": "https://example.com/recipe"}
//
// Returns 202 Accepted with the pending draft. The analysis runs in the
// background; clients poll HandleGet until the status settles.
func (h *DraftHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	var req createDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	draft, err := h.service.Create(r.Context(), userID, req.Description, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	// 202, not 201 — the resource exists but its payload is still being computed.
	writeJSON(w, http.StatusAccepted, draft)
}

// HandleGet returns one draft. This is the endpoint clients poll, so it
// must stay cheap: one row lookup, no side effects.
//
// HTTP: GET /api/drafts/{id}
func (h *DraftHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	draft, err := h.service.Status(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, draft)
}

// HandleList returns all the caller's drafts, newest first.
//
// HTTP: GET /api/drafts
func (h *DraftHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	drafts, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, drafts)
}

// HandleSave promotes a completed draft to a permanent meal.
//
// HTTP: POST /api/drafts/{id}/save
//
// Returns the created meal. The draft is gone afterwards; a second save of
// the same id gets a 404.
func (h *DraftHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	meal, err := h.service.Save(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, meal)
}

// HandleDiscard deletes a draft without saving it.
//
// HTTP: DELETE /api/drafts/{id}
func (h *DraftHandler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	if err := h.service.Discard(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleAddComponent analyses one more food item and appends it to a
// completed draft. The draft moves back to "pending_edit" while the
// analysis runs; the response is the draft in that state, and clients
// resume polling.
//
// HTTP: POST /api/drafts/{id}/components
// REQUEST BODY: {"description": "a slice of sourdough"}
func (h *DraftHandler) HandleAddComponent(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	var req addComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	draft, err := h.service.AddComponent(r.Context(), userID, r.PathValue("id"), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, draft)
}

// HandleRemoveComponent deletes one component from a completed draft.
//
// HTTP: DELETE /api/drafts/{id}/components/{componentId}
func (h *DraftHandler) HandleRemoveComponent(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	draft, err := h.service.RemoveComponent(r.Context(), userID, r.PathValue("id"), r.PathValue("componentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, draft)
}
