package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// UserService defines the user management operations required by the
// users handler.
type UserService interface {
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, username, password string, role models.Role) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
}

// PermissionService defines the permission resolution operations
// required by the users handler.
type PermissionService interface {
	Effective(ctx context.Context, userID string) (map[string]models.Permission, error)
	Has(ctx context.Context, userID, key string) (bool, error)
	Update(ctx context.Context, actorUserID, targetUserID string, changes map[string]bool) error
}

// UsersHandler handles user CRUD and permission routes.
type UsersHandler struct {
	Users       UserService
	Permissions PermissionService
}

// CreateUserRequest is the JSON payload for creating a user.
type CreateUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// UpdateUserRequest is the JSON payload for updating a user.
type UpdateUserRequest struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Hidden   bool        `json:"hidden"`
}

// PermissionsUpdateRequest is the JSON payload for permission changes.
type PermissionsUpdateRequest struct {
	Changes map[string]bool `json:"changes"`
}

// requireView allows the request when the actor holds the given
// capability, or when the actor is the target user themselves.
func (h *UsersHandler) requireView(r *http.Request, targetID string) error {
	actor := middleware.GetUserIDFromContext(r.Context())
	if actor == targetID && targetID != "" {
		return nil
	}
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermUsersView)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrForbidden
	}
	return nil
}

// requireEdit allows the request only for holders of users:edit.
func (h *UsersHandler) requireEdit(r *http.Request) error {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermUsersEdit)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrForbidden
	}
	return nil
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.requireView(r, ""); err != nil {
		writeError(w, err)
		return
	}
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireView(r, id); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	var req CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Users.Create(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	var req UpdateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user := &models.User{
		ID:       chi.URLParam(r, "id"),
		Username: req.Username,
		Role:     req.Role,
		Hidden:   req.Hidden,
	}
	if err := h.Users.Update(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// GetPermissions handles GET /api/users/{id}/permissions. A caller may
// always read their own effective permissions; reading another user's
// requires the users:view capability.
func (h *UsersHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireView(r, id); err != nil {
		writeError(w, err)
		return
	}
	effective, err := h.Permissions.Effective(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, effective)
}

// PutPermissions handles PUT /api/users/{id}/permissions. The
// capability gate lives in the permission service itself.
func (h *UsersHandler) PutPermissions(w http.ResponseWriter, r *http.Request) {
	var req PermissionsUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Changes) == 0 {
		writeError(w, fmt.Errorf("%w: no changes provided", service.ErrInvalid))
		return
	}

	actor := middleware.GetUserIDFromContext(r.Context())
	target := chi.URLParam(r, "id")
	if err := h.Permissions.Update(r.Context(), actor, target, req.Changes); err != nil {
		writeError(w, err)
		return
	}

	effective, err := h.Permissions.Effective(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, effective)
}
