package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// VisitorService defines the visitor profile operations required by the
// visitors handler.
type VisitorService interface {
	Get(ctx context.Context, visitorID string) (*models.Visitor, error)
	List(ctx context.Context) ([]models.Visitor, error)
	Register(ctx context.Context, visitorID, name string) error
	ClearName(ctx context.Context, visitorID string) error
}

// VisitorsHandler handles visitor identity routes. Get and Register are
// public; List and ClearName are admin operations.
type VisitorsHandler struct {
	Visitors    VisitorService
	Permissions PermissionService
}

// RegisterVisitorRequest is the JSON payload for name registration.
type RegisterVisitorRequest struct {
	VisitorID string `json:"visitorId"`
	Name      string `json:"name"`
}

// Get handles GET /api/visitors/{id}. Clients poll this during
// reconciliation; 404 means no server-side profile exists.
func (h *VisitorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	visitor, err := h.Visitors.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visitor)
}

// Register handles POST /api/visitors. It persists the display name
// server-side; clients update local state only after this succeeds.
func (h *VisitorsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterVisitorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Visitors.Register(r.Context(), req.VisitorID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// List handles GET /api/visitors, gated on users:view.
func (h *VisitorsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermUsersView)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, service.ErrForbidden)
		return
	}
	visitors, err := h.Visitors.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visitors)
}

// ClearName handles DELETE /api/visitors/{id}/name, gated on
// users:edit. It revokes the visitor's registration; clients observe
// the revocation on their next reconcile.
func (h *VisitorsHandler) ClearName(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermUsersEdit)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, service.ErrForbidden)
		return
	}
	if err := h.Visitors.ClearName(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
