package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/auth"
	"github.com/sakif/nutrilog/internal/repository"
	"github.com/sakif/nutrilog/internal/service"
)

// MealHandler serves saved meals and the summaries computed from them.
type MealHandler struct {
	service *service.MealService
	logger  *slog.Logger
}

func NewMealHandler(svc *service.MealService, logger *slog.Logger) *MealHandler {
	return &MealHandler{service: svc, logger: logger}
}

// HandleList returns the caller's saved meals.
//
// HTTP: GET /api/meals?limit=20&offset=0
func (h *MealHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	opts := repository.ListOptions{}
	// Pagination params are optional; garbage values just fall back to defaults.
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = v
	}

	meals, err := h.service.List(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meals)
}

// HandleGet returns one saved meal.
//
// HTTP: GET /api/meals/{id}
func (h *MealHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	meal, err := h.service.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meal)
}

// HandleDelete removes a saved meal.
//
// HTTP: DELETE /api/meals/{id}
func (h *MealHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	if err := h.service.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDailySummary returns one day's totals against the user's targets.
//
// HTTP: GET /api/summary/daily?date=2026-08-31
// An omitted date means today.
func (h *MealHandler) HandleDailySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	summary, err := h.service.DailySummary(r.Context(), userID, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleWeeklySummary returns the Monday-to-Sunday week containing the
// given date (today when omitted).
//
// HTTP: GET /api/summary/weekly?date=2026-08-31
func (h *MealHandler) HandleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	summary, err := h.service.WeeklySummary(r.Context(), userID, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleStreak returns the consecutive-days logging streak.
//
// HTTP: GET /api/account/streak
func (h *MealHandler) HandleStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}

	streak, err := h.service.Streak(r.Context(), userID, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, streak)
}
