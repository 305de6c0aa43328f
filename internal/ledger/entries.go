package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// ArchiveEntry records one relocation into the archive.
type ArchiveEntry struct {
	Category    string
	File        string
	FromPath    string
	ToPath      string
	AgeDays     float64
	Temperature float64
	At          time.Time
}

// StaleEntry records one knowledge record being marked stale.
type StaleEntry struct {
	Category      string
	File          string
	Previous      string // status before the mark
	DaysUnchecked int
	At            time.Time
}

// KnowledgeEntry records one validated knowledge write.
type KnowledgeEntry struct {
	Category string
	File     string
	Action   string
	Reason   string
	At       time.Time
}

// RecordArchive appends an archive_log row.
func (db *DB) RecordArchive(e ArchiveEntry) error {
	_, err := db.Exec(`
		INSERT INTO archive_log (category, file, from_path, to_path, age_days, temperature, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Category, e.File, e.FromPath, e.ToPath, e.AgeDays, e.Temperature, millis(e.At))
	if err != nil {
		return fmt.Errorf("record archive: %w", err)
	}
	return nil
}

// RecordStale appends a stale_log row.
func (db *DB) RecordStale(e StaleEntry) error {
	_, err := db.Exec(`
		INSERT INTO stale_log (category, file, previous, days_unchecked, marked_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Category, e.File, e.Previous, e.DaysUnchecked, millis(e.At))
	if err != nil {
		return fmt.Errorf("record stale: %w", err)
	}
	return nil
}

// RecordKnowledge appends a knowledge_log row.
func (db *DB) RecordKnowledge(e KnowledgeEntry) error {
	_, err := db.Exec(`
		INSERT INTO knowledge_log (category, file, action, reason, written_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Category, e.File, e.Action, e.Reason, millis(e.At))
	if err != nil {
		return fmt.Errorf("record knowledge: %w", err)
	}
	return nil
}

// Entry is one row of the combined history view.
type Entry struct {
	Kind     string // "archive", "stale" or "knowledge"
	Category string
	File     string
	Detail   string
	At       time.Time
}

// History returns the most recent entries across all logs, newest first.
func (db *DB) History(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT kind, category, file, detail, at FROM (
			SELECT 'archive' AS kind, category, file,
				printf('-> %s (%.0f days, temperature %.2f)', to_path, age_days, temperature) AS detail,
				archived_at AS at, id
			FROM archive_log
			UNION ALL
			SELECT 'stale', category, file,
				printf('%s -> stale (%d days unverified)', previous, days_unchecked),
				marked_at, id
			FROM stale_log
			UNION ALL
			SELECT 'knowledge', category, file, action || ': ' || reason, written_at, id
			FROM knowledge_log
		)
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ArchivedFiles returns the file names recorded in archive_log, oldest first.
func (db *DB) ArchivedFiles() ([]string, error) {
	rows, err := db.Query(`SELECT file FROM archive_log ORDER BY archived_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query archived files: %w", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan archived file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// KnowledgeActions returns the recorded actions for one record, oldest first.
func (db *DB) KnowledgeActions(category, file string) ([]string, error) {
	rows, err := db.Query(`
		SELECT action FROM knowledge_log
		WHERE category = ? AND file = ?
		ORDER BY written_at ASC, id ASC
	`, category, file)
	if err != nil {
		return nil, fmt.Errorf("query knowledge actions: %w", err)
	}
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan knowledge action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.Kind, &e.Category, &e.File, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
