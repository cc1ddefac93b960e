package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step.
type migration struct {
	version     int
	description string
	stmts       []string
}

// migrations are applied in order; never edit a released step, append a new one.
var migrations = []migration{
	{
		version:     1,
		description: "member table",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS member (
				id INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT NOT NULL,
				company_name TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		version:     2,
		description: "member email lookup index",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_member_email ON member(email)`,
		},
	},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion reports the applied schema version, 0 for a fresh database.
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB enables SQLite pragmas and applies pending migrations, each in its own transaction.
// PRE: db is a valid SQLite connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
// INVARIANT: Existing rows are never dropped
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		slog.Info("schema_migrated", "version", m.version, "description", m.description)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
		return fmt.Errorf("migration %d: record version: %w", m.version, err)
	}
	return tx.Commit()
}
