package store

import (
	"database/sql"
)

const currentSchemaVersion = 2

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS progress (
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			chapter_index INTEGER NOT NULL DEFAULT 0,
			position_ms INTEGER NOT NULL DEFAULT 0,
			percent REAL NOT NULL DEFAULT 0,
			device_id TEXT,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, item_id)
		);

		CREATE INDEX IF NOT EXISTS idx_progress_updated_at ON progress(user_id, updated_at DESC);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add device_id column if missing
	_, _ = db.Exec(`ALTER TABLE progress ADD COLUMN device_id TEXT`)

	return nil
}
