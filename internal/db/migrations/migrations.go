// internal/db/migrations/migrations.go
package migrations

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"usermgmt/internal/logger"
)

type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations are applied in order inside a transaction each. Statements are
// embedded so the binary carries its own schema.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_password_reset_tokens",
		Up: `
			CREATE TABLE IF NOT EXISTS password_reset_tokens (
				token TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				generated_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				used BOOLEAN NOT NULL DEFAULT FALSE,
				used_at TIMESTAMPTZ,
				external_user_id TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_password_reset_tokens_email ON password_reset_tokens (email);
		`,
	},
}

func RunMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if _, exists := applied[m.Version]; exists {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		logger.L().Info("applied migration", zap.String("name", m.Name))
	}

	return nil
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func getAppliedMigrations(db *sql.DB) (map[int]struct{}, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(m.Up); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
