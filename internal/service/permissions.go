package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/eyetask/driverhub/internal/models"
)

// PermissionRepository defines the persistence operations needed by the
// permission resolver: the role-default relation and the per-user
// override relation.
type PermissionRepository interface {
	// GetRoleDefaults returns the default permission rows for a role.
	GetRoleDefaults(ctx context.Context, role models.Role) (map[string]bool, error)
	// GetUserOverrides returns the override rows for a user. Overrides
	// store only deltas from role defaults.
	GetUserOverrides(ctx context.Context, userID string) (map[string]bool, error)
	// UpsertOverrides writes override rows, inserting or updating each key.
	UpsertOverrides(ctx context.Context, userID string, changes map[string]bool) error
}

// PermissionUserRepository is the subset of user persistence the
// resolver needs to locate the target user.
type PermissionUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// PermissionService resolves effective permissions by merging role
// defaults with per-user overrides, with an in-process cache keyed by
// user ID. Writes invalidate the cache synchronously, so subsequent
// checks in the same process observe new values immediately.
type PermissionService struct {
	repo  PermissionRepository
	users PermissionUserRepository

	mu    sync.Mutex
	cache map[string]map[string]models.Permission
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(repo PermissionRepository, users PermissionUserRepository) *PermissionService {
	return &PermissionService{
		repo:  repo,
		users: users,
		cache: make(map[string]map[string]models.Permission),
	}
}

// Effective returns the resolved permission map for userID. Role
// defaults are seeded first with source "role", then user overrides
// overwrite matching keys with source "user"; overrides always win.
func (s *PermissionService) Effective(ctx context.Context, userID string) (map[string]models.Permission, error) {
	s.mu.Lock()
	if cached, ok := s.cache[userID]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	defaults, err := s.repo.GetRoleDefaults(ctx, user.Role)
	if err != nil {
		return nil, fmt.Errorf("load role defaults: %w", err)
	}

	overrides, err := s.repo.GetUserOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	effective := make(map[string]models.Permission, len(defaults)+len(overrides))
	for key, value := range defaults {
		effective[key] = models.Permission{Value: value, Source: models.PermissionSourceRole}
	}
	for key, value := range overrides {
		effective[key] = models.Permission{Value: value, Source: models.PermissionSourceUser}
	}

	s.mu.Lock()
	s.cache[userID] = effective
	s.mu.Unlock()
	return effective, nil
}

// Has reports whether userID holds the given permission. Absent keys
// resolve to false.
func (s *PermissionService) Has(ctx context.Context, userID, key string) (bool, error) {
	effective, err := s.Effective(ctx, userID)
	if err != nil {
		return false, err
	}
	return effective[key].Value, nil
}

// Update applies permission changes for targetUserID on behalf of
// actorUserID. Only keys whose effective value actually changes are
// written, always as user-override rows; role defaults are never
// mutated from a per-user update. The actor must hold the
// permissions-edit or users-edit capability.
func (s *PermissionService) Update(ctx context.Context, actorUserID, targetUserID string, changes map[string]bool) error {
	canEdit, err := s.Has(ctx, actorUserID, models.PermPermissionsEdit)
	if err != nil {
		return err
	}
	if !canEdit {
		canEdit, err = s.Has(ctx, actorUserID, models.PermUsersEdit)
		if err != nil {
			return err
		}
	}
	if !canEdit {
		return fmt.Errorf("update permissions: %w", ErrForbidden)
	}

	// The cached effective map can outlive the user row, so confirm the
	// row is still there before writing overrides against it.
	exists, err := s.users.UserExists(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		s.Invalidate(targetUserID)
		return fmt.Errorf("user %s: %w", targetUserID, ErrNotFound)
	}

	// Resolve current effective values before touching anything, so the
	// write carries only the delta.
	current, err := s.Effective(ctx, targetUserID)
	if err != nil {
		return err
	}

	delta := make(map[string]bool)
	for key, value := range changes {
		if existing, ok := current[key]; ok && existing.Value == value {
			continue
		}
		delta[key] = value
	}
	if len(delta) == 0 {
		return nil
	}

	if err := s.repo.UpsertOverrides(ctx, targetUserID, delta); err != nil {
		return fmt.Errorf("write overrides: %w", err)
	}

	// Synchronous invalidation: the next Effective call for this user
	// re-reads both relations.
	s.Invalidate(targetUserID)
	return nil
}

// Invalidate drops the cached permission map for userID.
func (s *PermissionService) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}
