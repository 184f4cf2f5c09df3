package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eyetask/driverhub/internal/models"
)

// ProjectRepository defines the persistence operations needed by the
// project service.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
	Create(ctx context.Context, p *models.Project) error
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id string) error
}

// ProjectService implements project management.
type ProjectService struct {
	repo ProjectRepository
}

// NewProjectService constructs a ProjectService.
func NewProjectService(repo ProjectRepository) *ProjectService {
	return &ProjectService{repo: repo}
}

// Get fetches a project by ID.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return project, nil
}

// List returns all projects.
func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	return s.repo.List(ctx)
}

// Create validates and inserts a new project.
func (s *ProjectService) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	p.ID = uuid.NewString()
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update overwrites name and description of an existing project.
func (s *ProjectService) Update(ctx context.Context, p *models.Project) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	err := s.repo.Update(ctx, p)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	return err
}

// Delete removes a project and its tasks.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return err
}
