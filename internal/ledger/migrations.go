package ledger

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "archive_log: records relocated to the archive",
		SQL: `
CREATE TABLE archive_log (
    id           INTEGER PRIMARY KEY,
    category     TEXT NOT NULL,
    file         TEXT NOT NULL,
    from_path    TEXT NOT NULL,
    to_path      TEXT NOT NULL,
    age_days     REAL NOT NULL,
    temperature  REAL NOT NULL,
    archived_at  INTEGER NOT NULL
);

CREATE INDEX idx_archive_file ON archive_log(file);
CREATE INDEX idx_archive_at   ON archive_log(archived_at DESC);
`,
	},
	{
		Version:     2,
		Description: "stale_log: knowledge records marked stale",
		SQL: `
CREATE TABLE stale_log (
    id             INTEGER PRIMARY KEY,
    category       TEXT NOT NULL,
    file           TEXT NOT NULL,
    previous       TEXT NOT NULL DEFAULT '',
    days_unchecked INTEGER NOT NULL,
    marked_at      INTEGER NOT NULL
);

CREATE INDEX idx_stale_at ON stale_log(marked_at DESC);
`,
	},
	{
		Version:     3,
		Description: "knowledge_log: validated knowledge writes",
		SQL: `
CREATE TABLE knowledge_log (
    id          INTEGER PRIMARY KEY,
    category    TEXT NOT NULL,
    file        TEXT NOT NULL,
    action      TEXT NOT NULL CHECK (action IN ('ADD', 'NOOP', 'UPDATE', 'CONFLICT')),
    reason      TEXT NOT NULL DEFAULT '',
    written_at  INTEGER NOT NULL
);

CREATE INDEX idx_knowledge_file ON knowledge_log(category, file);
CREATE INDEX idx_knowledge_at   ON knowledge_log(written_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
