package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresPermissionRepository implements the two permission relations:
// role defaults and per-user overrides.
type PostgresPermissionRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresPermissionRepository creates a new PostgresPermissionRepository
// using the provided *sql.DB.
func NewPostgresPermissionRepository(db *sql.DB) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{DB: db}
}

// GetRoleDefaults returns the default permission rows for a role.
func (r *PostgresPermissionRepository) GetRoleDefaults(ctx context.Context, role models.Role) (map[string]bool, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT key, value FROM role_permissions WHERE role = $1
	`, role)
	if err != nil {
		return nil, fmt.Errorf("GetRoleDefaults: %w", err)
	}
	defer rows.Close()

	defaults := make(map[string]bool)
	for rows.Next() {
		var key string
		var value bool
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		defaults[key] = value
	}
	return defaults, rows.Err()
}

// GetUserOverrides returns the per-user override rows for userID.
// Overrides store only deltas from role defaults.
func (r *PostgresPermissionRepository) GetUserOverrides(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT key, value FROM user_permissions WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("GetUserOverrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]bool)
	for rows.Next() {
		var key string
		var value bool
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		overrides[key] = value
	}
	return overrides, rows.Err()
}

// UpsertOverrides writes the given override rows for userID within a
// transaction, inserting new keys and updating existing ones. Role
// default rows are never touched from here.
func (r *PostgresPermissionRepository) UpsertOverrides(ctx context.Context, userID string, changes map[string]bool) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for key, value := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_permissions (user_id, key, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value
		`, userID, key, value)
		if err != nil {
			return fmt.Errorf("upsert override: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
