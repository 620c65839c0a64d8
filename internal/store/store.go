// Package store provides SQLite-backed persistence for notes and folders.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	folder_id  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	schedule   TEXT NOT NULL DEFAULT '[]',
	reviewed   TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_owner ON notes(owner_id);
CREATE INDEX IF NOT EXISTS idx_notes_owner_folder ON notes(owner_id, folder_id);

CREATE TABLE IF NOT EXISTS folders (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(owner_id, name)
);
`

// DB wraps a sql.DB with note and folder operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// marshalTimes serializes timestamps as a JSON array of RFC 3339 strings.
// Times are normalized to UTC so the stored representation is stable and
// value-keyed conditional updates can compare against it.
func marshalTimes(ts []time.Time) (string, error) {
	norm := make([]time.Time, len(ts))
	for i, t := range ts {
		norm[i] = t.UTC()
	}
	data, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("store: marshal timestamps: %w", err)
	}
	return string(data), nil
}

func unmarshalTimes(raw string) ([]time.Time, error) {
	var ts []time.Time
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		return nil, fmt.Errorf("store: unmarshal timestamps: %w", err)
	}
	return ts, nil
}
