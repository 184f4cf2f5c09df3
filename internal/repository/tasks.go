package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresTaskRepository implements task and subtask persistence against
// Postgres. Task deletion is soft: rows are flagged and purged later by
// the background cleaner.
type PostgresTaskRepository struct {
	DB *sql.DB
}

// NewPostgresTaskRepository creates a new PostgresTaskRepository.
func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{DB: db}
}

// GetByID fetches a single non-deleted task.
func (r *PostgresTaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, project_id, title, details, priority, image_url, hidden, deleted, created_at, updated_at
		  FROM tasks WHERE id = $1 AND deleted = false
	`, id).Scan(&t.ID, &t.ProjectID, &t.Title, &t.Details, &t.Priority, &t.ImageURL,
		&t.Hidden, &t.Deleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all non-deleted tasks. When includeHidden is false,
// hidden tasks are filtered out as well.
func (r *PostgresTaskRepository) List(ctx context.Context, includeHidden bool) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, project_id, title, details, priority, image_url, hidden, deleted, created_at, updated_at
		  FROM tasks WHERE deleted = false AND (hidden = false OR $1) ORDER BY created_at
	`, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Details, &t.Priority, &t.ImageURL,
			&t.Hidden, &t.Deleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Create inserts a new task row.
func (r *PostgresTaskRepository) Create(ctx context.Context, t *models.Task) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, details, priority, image_url, hidden)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.ProjectID, t.Title, t.Details, t.Priority, t.ImageURL, t.Hidden)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update overwrites the mutable task fields and bumps updated_at.
func (r *PostgresTaskRepository) Update(ctx context.Context, t *models.Task) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE tasks
		   SET title = $2, details = $3, priority = $4, image_url = $5, hidden = $6, updated_at = now()
		 WHERE id = $1 AND deleted = false
	`, t.ID, t.Title, t.Details, t.Priority, t.ImageURL, t.Hidden)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete flags the given tasks as deleted. The background cleaner
// purges flagged rows after the retention window.
func (r *PostgresTaskRepository) SoftDelete(ctx context.Context, ids []string) error {
	query := `UPDATE tasks SET deleted = true, updated_at = now() WHERE id = ANY($1)`
	_, err := r.DB.ExecContext(ctx, query, pq.Array(ids))
	return err
}

// ListSubtasks returns the subtasks of a task ordered by creation time.
func (r *PostgresTaskRepository) ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, task_id, title, done, created_at FROM subtasks WHERE task_id = $1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []models.Subtask
	for rows.Next() {
		var s models.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.Title, &s.Done, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, rows.Err()
}

// ListAllSubtasks returns every subtask, used by the analytics aggregator.
func (r *PostgresTaskRepository) ListAllSubtasks(ctx context.Context) ([]models.Subtask, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, task_id, title, done, created_at FROM subtasks ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list all subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []models.Subtask
	for rows.Next() {
		var s models.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.Title, &s.Done, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, rows.Err()
}

// CreateSubtask inserts a new subtask row.
func (r *PostgresTaskRepository) CreateSubtask(ctx context.Context, s *models.Subtask) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, title, done) VALUES ($1, $2, $3, $4)
	`, s.ID, s.TaskID, s.Title, s.Done)
	if err != nil {
		return fmt.Errorf("create subtask: %w", err)
	}
	return nil
}

// UpdateSubtask overwrites title and done for an existing subtask.
func (r *PostgresTaskRepository) UpdateSubtask(ctx context.Context, s *models.Subtask) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE subtasks SET title = $2, done = $3 WHERE id = $1
	`, s.ID, s.Title, s.Done)
	if err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteSubtask removes a subtask row.
func (r *PostgresTaskRepository) DeleteSubtask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM subtasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
