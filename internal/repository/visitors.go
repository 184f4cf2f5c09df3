package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eyetask/driverhub/internal/models"
)

// PostgresVisitorRepository implements visitor profile persistence
// against Postgres. The server-side record is the source of truth for
// visitor registration state.
type PostgresVisitorRepository struct {
	DB *sql.DB
}

// NewPostgresVisitorRepository creates a new PostgresVisitorRepository.
func NewPostgresVisitorRepository(db *sql.DB) *PostgresVisitorRepository {
	return &PostgresVisitorRepository{DB: db}
}

// GetByID fetches the visitor profile. Returns sql.ErrNoRows when absent.
func (r *PostgresVisitorRepository) GetByID(ctx context.Context, visitorID string) (*models.Visitor, error) {
	var v models.Visitor
	err := r.DB.QueryRowContext(ctx, `
		SELECT visitor_id, name, first_seen, last_seen, total_visits, total_actions
		  FROM visitors WHERE visitor_id = $1
	`, visitorID).Scan(&v.VisitorID, &v.Name, &v.FirstSeen, &v.LastSeen, &v.TotalVisits, &v.TotalActions)
	if err != nil {
		return nil, err
	}
	v.IsRegistered = v.Name != ""
	return &v, nil
}

// List returns all visitor profiles ordered by last_seen, newest first.
func (r *PostgresVisitorRepository) List(ctx context.Context) ([]models.Visitor, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT visitor_id, name, first_seen, last_seen, total_visits, total_actions
		  FROM visitors ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	var visitors []models.Visitor
	for rows.Next() {
		var v models.Visitor
		if err := rows.Scan(&v.VisitorID, &v.Name, &v.FirstSeen, &v.LastSeen, &v.TotalVisits, &v.TotalActions); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v.IsRegistered = v.Name != ""
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

// SetName creates or updates the visitor profile with the given display
// name. An empty name clears the registration.
func (r *PostgresVisitorRepository) SetName(ctx context.Context, visitorID, name string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO visitors (visitor_id, name)
		VALUES ($1, $2)
		ON CONFLICT (visitor_id) DO UPDATE SET name = EXCLUDED.name, last_seen = now()
	`, visitorID, name)
	if err != nil {
		return fmt.Errorf("set visitor name: %w", err)
	}
	return nil
}

// RecordVisit upserts the visitor row, bumping last_seen and total_visits.
func (r *PostgresVisitorRepository) RecordVisit(ctx context.Context, visitorID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO visitors (visitor_id, total_visits)
		VALUES ($1, 1)
		ON CONFLICT (visitor_id) DO UPDATE SET
			total_visits = visitors.total_visits + 1,
			last_seen = now()
	`, visitorID)
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// RecordAction bumps total_actions and last_seen for an existing visitor.
func (r *PostgresVisitorRepository) RecordAction(ctx context.Context, visitorID string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE visitors SET total_actions = total_actions + 1, last_seen = now()
		 WHERE visitor_id = $1
	`, visitorID)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}
