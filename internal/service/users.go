package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eyetask/driverhub/internal/models"
)

// UserRepository defines the persistence operations needed by the user
// management service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
}

// UserService implements user management operations.
type UserService struct {
	repo UserRepository
}

// NewUserService constructs a UserService using the provided repository.
func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Get fetches a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

// List returns all visible users.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

// Create registers a new user with a hashed password and a generated ID.
func (s *UserService) Create(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalid)
	}
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleDriver:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update overwrites username, role, and hidden for an existing user.
func (s *UserService) Update(ctx context.Context, u *models.User) error {
	err := s.repo.Update(ctx, u)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	return err
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return err
}
