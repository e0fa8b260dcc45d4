package db

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DefaultMigrationsDir is where this service's goose migrations live,
// relative to the working directory.
const DefaultMigrationsDir = "migrations/core"

// RunMigrations applies pending goose migrations from dir. It uses its own
// short-lived connection through the pgx stdlib adapter; the service pool
// is not involved.
func RunMigrations(databaseURL, dir string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
