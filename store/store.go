// Package store persists finalized recordings and detection runs in a
// project-scoped SQLite database. Records go in and come out as the
// plain serializable structs the core packages emit; no business logic
// lives here.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. The special path ":memory:" opens a throwaway in-memory
// database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL DEFAULT '',
		startedAt REAL NOT NULL,
		stoppedAt REAL NOT NULL,
		durationS REAL NOT NULL,
		zeroDuration INTEGER NOT NULL DEFAULT 0,
		snapshot TEXT NOT NULL,
		loopStartS REAL,
		loopEndS REAL,
		takesRecorded INTEGER NOT NULL DEFAULT 0,
		multipleTakes INTEGER NOT NULL DEFAULT 0,
		createdAt REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_project
		ON recordings(project, startedAt DESC);

	CREATE TABLE IF NOT EXISTS detection_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL DEFAULT '',
		startedAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		runId INTEGER NOT NULL REFERENCES detection_runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		durationS REAL NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		elapsedS REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS hits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fileId INTEGER NOT NULL REFERENCES file_results(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('start', 'end')),
		timeS REAL NOT NULL,
		score REAL NOT NULL,
		refId TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fileId INTEGER NOT NULL REFERENCES file_results(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		startTimeS REAL NOT NULL,
		endTimeS REAL,
		durationS REAL,
		edgeCase TEXT NOT NULL DEFAULT ''
	);
`

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
