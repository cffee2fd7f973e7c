// Package tagstore persists saved file tags in SQLite.
package tagstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"groove.click/internal/engine"
)

// Store keeps the saved tags of each file, keyed by absolute path.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the tag database at dbPath. ":memory:" gives a
// private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	slog.Debug("tag database opened", "path", dbPath)
	return &Store{db: db, path: dbPath}, nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS files (
    path     TEXT    PRIMARY KEY,
    saved_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
    path     TEXT    NOT NULL REFERENCES files(path) ON DELETE CASCADE,
    sequence INTEGER NOT NULL CHECK (sequence >= 0),
    key      TEXT    NOT NULL,
    value    TEXT    NOT NULL,
    PRIMARY KEY (path, sequence)
);

CREATE INDEX IF NOT EXISTS idx_tags_key ON tags(key);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadTags returns the tags saved for path. The boolean is false when the
// file was never saved.
func (s *Store) LoadTags(path string) ([]engine.Tag, bool, error) {
	var savedAt int64
	err := s.db.QueryRow("SELECT saved_at FROM files WHERE path = ?", path).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up %s: %w", path, err)
	}

	rows, err := s.db.Query("SELECT key, value FROM tags WHERE path = ? ORDER BY sequence", path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []engine.Tag
	for rows.Next() {
		var t engine.Tag
		if err := rows.Scan(&t.Key, &t.Value); err != nil {
			return nil, false, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read tags: %w", err)
	}

	return tags, true, nil
}

// SaveTags replaces the saved tags of path.
func (s *Store) SaveTags(path string, tags []engine.Tag) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO files (path, saved_at) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET saved_at = excluded.saved_at`,
		path, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM tags WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO tags (path, sequence, key, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range tags {
		if _, err := stmt.Exec(path, i, t.Key, t.Value); err != nil {
			return fmt.Errorf("failed to insert tag %s: %w", t.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tags: %w", err)
	}

	slog.Debug("tags saved to database", "path", path, "tags", len(tags))
	return nil
}

// Forget drops everything saved for path.
func (s *Store) Forget(path string) error {
	if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("failed to forget %s: %w", path, err)
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
