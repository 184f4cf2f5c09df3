package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eyetask/driverhub/internal/middleware"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// TaskService defines the task and subtask operations required by the
// tasks handler.
type TaskService interface {
	Get(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, includeHidden bool) ([]models.Task, error)
	Create(ctx context.Context, t *models.Task, visitorID string) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id string) error
	ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error)
	CreateSubtask(ctx context.Context, s *models.Subtask, visitorID string) (*models.Subtask, error)
	UpdateSubtask(ctx context.Context, s *models.Subtask) error
	DeleteSubtask(ctx context.Context, id string) error
}

// TasksHandler handles task and subtask routes.
type TasksHandler struct {
	Tasks       TaskService
	Permissions PermissionService
}

// TaskRequest is the JSON payload for creating or updating a task.
type TaskRequest struct {
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Details   string `json:"details"`
	Priority  int    `json:"priority"`
	ImageURL  string `json:"imageUrl"`
	Hidden    bool   `json:"hidden"`
	VisitorID string `json:"visitorId"`
}

// SubtaskRequest is the JSON payload for creating or updating a subtask.
type SubtaskRequest struct {
	Title     string `json:"title"`
	Done      bool   `json:"done"`
	VisitorID string `json:"visitorId"`
}

func (h *TasksHandler) require(r *http.Request, key string) error {
	actor := middleware.GetUserIDFromContext(r.Context())
	ok, err := h.Permissions.Has(r.Context(), actor, key)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrForbidden
	}
	return nil
}

// List handles GET /api/tasks. Hidden tasks are included only for
// holders of tasks:edit.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksView); err != nil {
		writeError(w, err)
		return
	}
	actor := middleware.GetUserIDFromContext(r.Context())
	includeHidden, err := h.Permissions.Has(r.Context(), actor, models.PermTasksEdit)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := h.Tasks.List(r.Context(), includeHidden)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get handles GET /api/tasks/{id}.
func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksView); err != nil {
		writeError(w, err)
		return
	}
	task, err := h.Tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Create handles POST /api/tasks.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksEdit); err != nil {
		writeError(w, err)
		return
	}
	var req TaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := h.Tasks.Create(r.Context(), &models.Task{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Details:   req.Details,
		Priority:  req.Priority,
		ImageURL:  req.ImageURL,
		Hidden:    req.Hidden,
	}, req.VisitorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PUT /api/tasks/{id}.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksEdit); err != nil {
		writeError(w, err)
		return
	}
	var req TaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task := &models.Task{
		ID:       chi.URLParam(r, "id"),
		Title:    req.Title,
		Details:  req.Details,
		Priority: req.Priority,
		ImageURL: req.ImageURL,
		Hidden:   req.Hidden,
	}
	if err := h.Tasks.Update(r.Context(), task); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksEdit); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Tasks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// ListSubtasks handles GET /api/tasks/{id}/subtasks.
func (h *TasksHandler) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksView); err != nil {
		writeError(w, err)
		return
	}
	subtasks, err := h.Tasks.ListSubtasks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subtasks)
}

// CreateSubtask handles POST /api/tasks/{id}/subtasks.
func (h *TasksHandler) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksEdit); err != nil {
		writeError(w, err)
		return
	}
	var req SubtaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	subtask, err := h.Tasks.CreateSubtask(r.Context(), &models.Subtask{
		TaskID: chi.URLParam(r, "id"),
		Title:  req.Title,
		Done:   req.Done,
	}, req.VisitorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subtask)
}

// UpdateSubtask handles PUT /api/subtasks/{id}.
func (h *TasksHandler) UpdateSubtask(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksEdit); err != nil {
		writeError(w, err)
		return
	}
	var req SubtaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	subtask := &models.Subtask{
		ID:    chi.URLParam(r, "id"),
		Title: req.Title,
		Done:  req.Done,
	}
	if err := h.Tasks.UpdateSubtask(r.Context(), subtask); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subtask)
}

// DeleteSubtask handles DELETE /api/subtasks/{id}.
func (h *TasksHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, models.PermTasksEdit); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Tasks.DeleteSubtask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
