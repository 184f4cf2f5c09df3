package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eyetask/driverhub/internal/models"
)

// VisitorRepository defines the persistence operations needed by the
// visitor service.
type VisitorRepository interface {
	GetByID(ctx context.Context, visitorID string) (*models.Visitor, error)
	List(ctx context.Context) ([]models.Visitor, error)
	SetName(ctx context.Context, visitorID, name string) error
	RecordAction(ctx context.Context, visitorID string) error
}

// VisitorService manages server-side visitor profiles. The server
// record is the source of truth for registration state: clients
// reconcile their local copy against it, never the reverse.
type VisitorService struct {
	repo VisitorRepository
}

// NewVisitorService constructs a VisitorService.
func NewVisitorService(repo VisitorRepository) *VisitorService {
	return &VisitorService{repo: repo}
}

// Get fetches the visitor profile for visitorID.
func (s *VisitorService) Get(ctx context.Context, visitorID string) (*models.Visitor, error) {
	visitor, err := s.repo.GetByID(ctx, visitorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("visitor %s: %w", visitorID, ErrNotFound)
		}
		return nil, err
	}
	return visitor, nil
}

// List returns all visitor profiles.
func (s *VisitorService) List(ctx context.Context) ([]models.Visitor, error) {
	return s.repo.List(ctx)
}

// Register stores the display name for visitorID, creating the profile
// row when absent.
func (s *VisitorService) Register(ctx context.Context, visitorID, name string) error {
	name = strings.TrimSpace(name)
	if visitorID == "" || name == "" {
		return fmt.Errorf("%w: visitorId and name are required", ErrInvalid)
	}
	return s.repo.SetName(ctx, visitorID, name)
}

// ClearName revokes a visitor's registration by blanking the stored
// name. Clients observe the revocation on their next reconcile.
func (s *VisitorService) ClearName(ctx context.Context, visitorID string) error {
	if _, err := s.Get(ctx, visitorID); err != nil {
		return err
	}
	return s.repo.SetName(ctx, visitorID, "")
}

// RecordAction bumps the action counter for an existing visitor.
func (s *VisitorService) RecordAction(ctx context.Context, visitorID string) error {
	return s.repo.RecordAction(ctx, visitorID)
}
