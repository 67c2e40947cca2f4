// Package index provides a SQLite-backed search index over note contents,
// with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. The index only holds data
// derived from the notebooks, so an older layout is dropped and rebuilt by
// the next Sync.
const schemaVersion = 1

const dropSchemaSQL = `
DROP TABLE IF EXISTS notes_fts;
DROP TABLE IF EXISTS links;
DROP TABLE IF EXISTS notes;
`

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	notebook   TEXT NOT NULL,
	path       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (notebook, path)
);

CREATE INDEX IF NOT EXISTS idx_notes_notebook ON notes(notebook);
`

// DB is the note index.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at path and brings its
// schema up to date.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version != schemaVersion {
		if _, err := conn.Exec(dropSchemaSQL); err != nil {
			return fmt.Errorf("index: drop schema v%d: %w", version, err)
		}
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		return fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		return fmt.Errorf("index: apply fts schema: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("index: write schema version: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
