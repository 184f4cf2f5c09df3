package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/models"
)

// analyticsKeys matches every cached analytics snapshot, invalidated on
// any write that changes the numbers.
var analyticsKeys = regexp.MustCompile(`^analytics:`)

// TaskRepository defines the persistence operations needed by the task
// service.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, includeHidden bool) ([]models.Task, error)
	Create(ctx context.Context, t *models.Task) error
	Update(ctx context.Context, t *models.Task) error
	SoftDelete(ctx context.Context, ids []string) error
	ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error)
	CreateSubtask(ctx context.Context, s *models.Subtask) error
	UpdateSubtask(ctx context.Context, s *models.Subtask) error
	DeleteSubtask(ctx context.Context, id string) error
}

// ActivityWriter appends activity-log entries recorded on task writes.
type ActivityWriter interface {
	Insert(ctx context.Context, e *models.ActivityEntry) error
}

// TaskService implements task and subtask management. Writes append
// activity entries and invalidate cached analytics snapshots; activity
// logging failures are logged but never fail the write itself.
type TaskService struct {
	repo     TaskRepository
	activity ActivityWriter
	cache    *cache.Manager
	log      *zap.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(repo TaskRepository, activity ActivityWriter, c *cache.Manager, log *zap.Logger) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{repo: repo, activity: activity, cache: c, log: log}
}

// Get fetches a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return task, nil
}

// List returns tasks, optionally including hidden ones.
func (s *TaskService) List(ctx context.Context, includeHidden bool) ([]models.Task, error) {
	return s.repo.List(ctx, includeHidden)
}

// Create validates and inserts a new task, records the activity entry,
// and invalidates analytics snapshots.
func (s *TaskService) Create(ctx context.Context, t *models.Task, visitorID string) (*models.Task, error) {
	if t.Title == "" || t.ProjectID == "" {
		return nil, fmt.Errorf("%w: title and projectId are required", ErrInvalid)
	}
	if t.Priority < 0 || t.Priority > 10 {
		return nil, fmt.Errorf("%w: priority must be 0-10", ErrInvalid)
	}

	t.ID = uuid.NewString()
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logActivity(ctx, visitorID, models.ActionTaskCreated)
	s.invalidateAnalytics()
	return t, nil
}

// Update overwrites the mutable fields of a task and invalidates
// analytics snapshots.
func (s *TaskService) Update(ctx context.Context, t *models.Task) error {
	if t.Priority < 0 || t.Priority > 10 {
		return fmt.Errorf("%w: priority must be 0-10", ErrInvalid)
	}
	err := s.repo.Update(ctx, t)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	if err == nil {
		s.invalidateAnalytics()
	}
	return err
}

// Delete soft-deletes a task. The background cleaner purges flagged rows
// after the retention window.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, []string{id}); err != nil {
		return err
	}
	s.invalidateAnalytics()
	return nil
}

// ListSubtasks returns the subtasks of a task.
func (s *TaskService) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	return s.repo.ListSubtasks(ctx, taskID)
}

// CreateSubtask validates and inserts a subtask under an existing task,
// records the activity entry, and invalidates analytics snapshots.
func (s *TaskService) CreateSubtask(ctx context.Context, sub *models.Subtask, visitorID string) (*models.Subtask, error) {
	if sub.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if _, err := s.Get(ctx, sub.TaskID); err != nil {
		return nil, err
	}

	sub.ID = uuid.NewString()
	if err := s.repo.CreateSubtask(ctx, sub); err != nil {
		return nil, err
	}

	s.logActivity(ctx, visitorID, models.ActionSubtaskCreated)
	s.invalidateAnalytics()
	return sub, nil
}

// UpdateSubtask overwrites title and done for a subtask.
func (s *TaskService) UpdateSubtask(ctx context.Context, sub *models.Subtask) error {
	err := s.repo.UpdateSubtask(ctx, sub)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("subtask %s: %w", sub.ID, ErrNotFound)
	}
	return err
}

// DeleteSubtask removes a subtask.
func (s *TaskService) DeleteSubtask(ctx context.Context, id string) error {
	err := s.repo.DeleteSubtask(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("subtask %s: %w", id, ErrNotFound)
	}
	if err == nil {
		s.invalidateAnalytics()
	}
	return err
}

func (s *TaskService) logActivity(ctx context.Context, visitorID, action string) {
	if s.activity == nil {
		return
	}
	entry := &models.ActivityEntry{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		Action:    action,
		CreatedAt: time.Now(),
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		s.log.Warn("failed to record activity", zap.String("action", action), zap.Error(err))
	}
}

func (s *TaskService) invalidateAnalytics() {
	if s.cache != nil {
		s.cache.InvalidatePattern(analyticsKeys)
	}
}
