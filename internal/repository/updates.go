package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresUpdateRepository implements daily-update (announcement banner)
// persistence against Postgres.
type PostgresUpdateRepository struct {
	DB *sql.DB
}

// NewPostgresUpdateRepository creates a new PostgresUpdateRepository.
func NewPostgresUpdateRepository(db *sql.DB) *PostgresUpdateRepository {
	return &PostgresUpdateRepository{DB: db}
}

// GetByID fetches a single daily update. Returns sql.ErrNoRows when absent.
func (r *PostgresUpdateRepository) GetByID(ctx context.Context, id string) (*models.DailyUpdate, error) {
	var u models.DailyUpdate
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, title, body, starts_at, ends_at, hidden, created_at
		  FROM daily_updates WHERE id = $1
	`, id).Scan(&u.ID, &u.Title, &u.Body, &u.StartsAt, &u.EndsAt, &u.Hidden, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActive returns non-hidden updates whose window covers now.
func (r *PostgresUpdateRepository) ListActive(ctx context.Context) ([]models.DailyUpdate, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, body, starts_at, ends_at, hidden, created_at
		  FROM daily_updates
		 WHERE hidden = false AND starts_at <= now() AND ends_at >= now()
		 ORDER BY starts_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list active updates: %w", err)
	}
	defer rows.Close()

	var updates []models.DailyUpdate
	for rows.Next() {
		var u models.DailyUpdate
		if err := rows.Scan(&u.ID, &u.Title, &u.Body, &u.StartsAt, &u.EndsAt, &u.Hidden, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// Create inserts a new daily update row.
func (r *PostgresUpdateRepository) Create(ctx context.Context, u *models.DailyUpdate) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO daily_updates (id, title, body, starts_at, ends_at, hidden)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Title, u.Body, u.StartsAt, u.EndsAt, u.Hidden)
	if err != nil {
		return fmt.Errorf("create update: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing daily update.
func (r *PostgresUpdateRepository) Update(ctx context.Context, u *models.DailyUpdate) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE daily_updates
		   SET title = $2, body = $3, starts_at = $4, ends_at = $5, hidden = $6
		 WHERE id = $1
	`, u.ID, u.Title, u.Body, u.StartsAt, u.EndsAt, u.Hidden)
	if err != nil {
		return fmt.Errorf("update daily update: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a daily update row.
func (r *PostgresUpdateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM daily_updates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete daily update: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
