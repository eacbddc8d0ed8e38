package shared

import (
	"database/sql"
	_ "embed"
	"fmt"
)

// The schema is a single kv table. Its up and down scripts are embedded and
// tracked through schema_migrations, so reruns are no-ops and a second
// migration slots in by version number.
var (
	//go:embed sql/0000_create_kv_up.sql
	kvUpSQL string

	//go:embed sql/0000_create_kv_down.sql
	kvDownSQL string
)

const kvVersion = 0

// RunMigrations brings the database up to the current schema.
func RunMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := migrationApplied(db, kvVersion)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	return runScript(db, kvUpSQL, "INSERT INTO schema_migrations (version) VALUES (?)", kvVersion)
}

// RollbackMigration reverses the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, kvVersion)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("no migrations to rollback")
	}

	return runScript(db, kvDownSQL, "DELETE FROM schema_migrations WHERE version = ?", kvVersion)
}

func createMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(query)
	return err
}

func migrationApplied(db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

// runScript executes a migration script and its bookkeeping statement in a
// single transaction.
func runScript(db *sql.DB, script, record string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to apply migration %d: %w", version, err)
	}

	if _, err := tx.Exec(record, version); err != nil {
		return err
	}

	return tx.Commit()
}
