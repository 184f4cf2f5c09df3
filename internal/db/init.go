package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/eyetask/driverhub/internal/db/migrations"
)

// InitPostgres opens a Postgres connection, verifies it, and applies
// pending schema migrations.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}
