package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresActivityRepository implements the append-only activity log used
// by the analytics aggregator.
type PostgresActivityRepository struct {
	DB *sql.DB
}

// NewPostgresActivityRepository creates a new PostgresActivityRepository.
func NewPostgresActivityRepository(db *sql.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{DB: db}
}

// Insert appends an activity entry.
func (r *PostgresActivityRepository) Insert(ctx context.Context, e *models.ActivityEntry) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO activity_log (id, visitor_id, action, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.VisitorID, e.Action, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListSince returns all activity entries created at or after since,
// oldest first.
func (r *PostgresActivityRepository) ListSince(ctx context.Context, since time.Time) ([]models.ActivityEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, visitor_id, action, created_at
		  FROM activity_log WHERE created_at >= $1 ORDER BY created_at
	`, since)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.VisitorID, &e.Action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountUniqueVisitorsSince counts distinct visitor ids with activity at
// or after since.
func (r *PostgresActivityRepository) CountUniqueVisitorsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT visitor_id) FROM activity_log WHERE created_at >= $1
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unique visitors: %w", err)
	}
	return count, nil
}
