package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresProjectRepository implements project persistence against Postgres.
type PostgresProjectRepository struct {
	DB *sql.DB
}

// NewPostgresProjectRepository creates a new PostgresProjectRepository.
func NewPostgresProjectRepository(db *sql.DB) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

// GetByID fetches a single project. Returns sql.ErrNoRows when absent.
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all projects ordered by creation time.
func (r *PostgresProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM projects ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Create inserts a new project row.
func (r *PostgresProjectRepository) Create(ctx context.Context, p *models.Project) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO projects (id, name, description) VALUES ($1, $2, $3)
	`, p.ID, p.Name, p.Description)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// Update overwrites name and description for an existing project.
func (r *PostgresProjectRepository) Update(ctx context.Context, p *models.Project) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE projects SET name = $2, description = $3 WHERE id = $1
	`, p.ID, p.Name, p.Description)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a project and, via cascade, its tasks and subtasks.
func (r *PostgresProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
