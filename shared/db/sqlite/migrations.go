package sqlite

import (
	"database/sql"
	"fmt"
)

// migration represents a single database migration
type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of all database migrations.
// Statements must be safe to re-run against a database created by an older
// build that did not record its schema version.
var migrations = []migration{
	{
		version: 1,
		name:    "create_image_table",
		up: `
			CREATE TABLE IF NOT EXISTS image (
				name TEXT PRIMARY KEY
			);
		`,
	},
	{
		version: 2,
		name:    "create_tag_table",
		up: `
			CREATE TABLE IF NOT EXISTS tag (
				name TEXT PRIMARY KEY
			);
		`,
	},
	{
		version: 3,
		name:    "create_image_tag_table",
		up: `
			CREATE TABLE IF NOT EXISTS image_tag (
				image TEXT NOT NULL,
				tag TEXT NOT NULL,
				PRIMARY KEY (image, tag),
				FOREIGN KEY (image) REFERENCES image(name)
					ON UPDATE CASCADE
					ON DELETE CASCADE,
				FOREIGN KEY (tag) REFERENCES tag(name)
					ON UPDATE CASCADE
					ON DELETE CASCADE
			);

			CREATE INDEX IF NOT EXISTS idx_image_tag_tag
			ON image_tag(tag);
		`,
	},
}

// runMigrations executes all pending migrations, each in its own transaction.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
	}

	if _, err := tx.Exec(m.up); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version,
		m.name,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}

	return nil
}
