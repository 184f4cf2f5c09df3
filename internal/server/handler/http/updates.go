package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// UpdateService defines the daily-update operations required by the
// updates handler.
type UpdateService interface {
	Get(ctx context.Context, id string) (*models.DailyUpdate, error)
	ListActive(ctx context.Context) ([]models.DailyUpdate, error)
	Create(ctx context.Context, u *models.DailyUpdate) (*models.DailyUpdate, error)
	Update(ctx context.Context, u *models.DailyUpdate) error
	Delete(ctx context.Context, id string) error
}

// UpdatesHandler handles daily announcement banner routes.
type UpdatesHandler struct {
	Updates     UpdateService
	Permissions PermissionService
}

// DailyUpdateRequest is the JSON payload for banner writes.
type DailyUpdateRequest struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Hidden   bool      `json:"hidden"`
}

func (h *UpdatesHandler) requireEdit(r *http.Request) error {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermUpdatesEdit)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrForbidden
	}
	return nil
}

// ListActive handles GET /api/daily-updates. Active banners are shown
// to everyone, so this route is public.
func (h *UpdatesHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	updates, err := h.Updates.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updates)
}

// Get handles GET /api/daily-updates/{id}.
func (h *UpdatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	update, err := h.Updates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// Create handles POST /api/daily-updates.
func (h *UpdatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	var req DailyUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	update, err := h.Updates.Create(r.Context(), &models.DailyUpdate{
		Title:    req.Title,
		Body:     req.Body,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Hidden:   req.Hidden,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, update)
}

// Update handles PUT /api/daily-updates/{id}.
func (h *UpdatesHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	var req DailyUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	update := &models.DailyUpdate{
		ID:       chi.URLParam(r, "id"),
		Title:    req.Title,
		Body:     req.Body,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Hidden:   req.Hidden,
	}
	if err := h.Updates.Update(r.Context(), update); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// Delete handles DELETE /api/daily-updates/{id}.
func (h *UpdatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Updates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
