package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Notebook  string
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Notebook string `json:"notebook"`
	Path     string `json:"path"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Row selectors shared by the notes table and the FTS table.
const (
	whereNote     = `notebook = ? AND path = ?`
	wherePrefix   = `notebook = ? AND (path = ? OR substr(path, 1, length(?) + 1) = ? || '/')`
	whereNotebook = `notebook = ?`
)

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (notebook, path, title, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(notebook, path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Notebook, n.Path, n.Title, n.Checksum, string(tagsJSON), body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// No-op when the FTS5 tag is absent.
	if err := ftsUpsert(tx, n.Notebook, n.Path, n.Title, body, n.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNote removes one note.
func (db *DB) DeleteNote(notebook, path string) error {
	return db.delete(whereNote, notebook, path)
}

// DeletePrefix removes dir and every note below it.
func (db *DB) DeletePrefix(notebook, dir string) error {
	return db.delete(wherePrefix, notebook, dir, dir, dir)
}

// DeleteNotebook removes every note of a notebook.
func (db *DB) DeleteNotebook(notebook string) error {
	return db.delete(whereNotebook, notebook)
}

func (db *DB) delete(where string, args ...any) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, where, args...); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE `+where, args...); err != nil {
		return fmt.Errorf("index: delete: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or "" if it is not indexed.
func (db *DB) GetChecksum(notebook, path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE `+whereNote, notebook, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums maps every indexed path of a notebook to its checksum.
func (db *DB) AllChecksums(notebook string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes WHERE `+whereNotebook, notebook)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Notebooks returns the names of all notebooks that have indexed notes.
func (db *DB) Notebooks() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT notebook FROM notes ORDER BY notebook`)
	if err != nil {
		return nil, fmt.Errorf("index: notebooks: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
