// Package repository provides Postgres persistence implementations for the
// application services.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresUserRepository implements user persistence against Postgres.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the
// given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// GetByID fetches a single user by ID. Returns sql.ErrNoRows when absent.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, hidden, created_at
		  FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Hidden, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches a single user by login name.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, hidden, created_at
		  FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Hidden, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserExists checks whether a user with the specified ID exists.
func (r *PostgresUserRepository) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
		id,
	).Scan(&exists)
	return exists, err
}

// List returns all non-hidden users ordered by creation time.
func (r *PostgresUserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, username, password_hash, role, hidden, created_at
		  FROM users WHERE hidden = false ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Hidden, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new user row.
func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, hidden)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Username, u.PasswordHash, u.Role, u.Hidden)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update overwrites username, role, and hidden for an existing user.
func (r *PostgresUserRepository) Update(ctx context.Context, u *models.User) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users SET username = $2, role = $3, hidden = $4 WHERE id = $1
	`, u.ID, u.Username, u.Role, u.Hidden)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a user and, via cascade, their permission overrides.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
