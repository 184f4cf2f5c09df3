package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eyetask/driverhub/internal/models"
)

// UpdateRepository defines the persistence operations needed by the
// daily-update service.
type UpdateRepository interface {
	GetByID(ctx context.Context, id string) (*models.DailyUpdate, error)
	ListActive(ctx context.Context) ([]models.DailyUpdate, error)
	Create(ctx context.Context, u *models.DailyUpdate) error
	Update(ctx context.Context, u *models.DailyUpdate) error
	Delete(ctx context.Context, id string) error
}

// UpdateService manages daily announcement banners.
type UpdateService struct {
	repo UpdateRepository
}

// NewUpdateService constructs an UpdateService.
func NewUpdateService(repo UpdateRepository) *UpdateService {
	return &UpdateService{repo: repo}
}

// Get fetches a daily update by ID.
func (s *UpdateService) Get(ctx context.Context, id string) (*models.DailyUpdate, error) {
	update, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("daily update %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return update, nil
}

// ListActive returns banners whose display window covers now.
func (s *UpdateService) ListActive(ctx context.Context) ([]models.DailyUpdate, error) {
	return s.repo.ListActive(ctx)
}

// Create validates and inserts a new banner.
func (s *UpdateService) Create(ctx context.Context, u *models.DailyUpdate) (*models.DailyUpdate, error) {
	if u.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !u.EndsAt.After(u.StartsAt) {
		return nil, fmt.Errorf("%w: endsAt must be after startsAt", ErrInvalid)
	}
	u.ID = uuid.NewString()
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update overwrites an existing banner.
func (s *UpdateService) Update(ctx context.Context, u *models.DailyUpdate) error {
	if !u.EndsAt.After(u.StartsAt) {
		return fmt.Errorf("%w: endsAt must be after startsAt", ErrInvalid)
	}
	err := s.repo.Update(ctx, u)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("daily update %s: %w", u.ID, ErrNotFound)
	}
	return err
}

// Delete removes a banner.
func (s *UpdateService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("daily update %s: %w", id, ErrNotFound)
	}
	return err
}
