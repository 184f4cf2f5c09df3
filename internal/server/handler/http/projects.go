package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// ProjectService defines the project operations required by the handler.
type ProjectService interface {
	Get(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id string) error
}

// ProjectsHandler handles project CRUD routes.
type ProjectsHandler struct {
	Projects    ProjectService
	Permissions PermissionService
}

// ProjectRequest is the JSON payload for creating or updating a project.
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ProjectsHandler) requireEdit(r *http.Request) error {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, models.PermProjectsEdit)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrForbidden
	}
	return nil
}

// List handles GET /api/projects.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Projects.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Get handles GET /api/projects/{id}.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Create handles POST /api/projects.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	var req ProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	project, err := h.Projects.Create(r.Context(), &models.Project{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// Update handles PUT /api/projects/{id}.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	var req ProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	project := &models.Project{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.Projects.Update(r.Context(), project); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.requireEdit(r); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
