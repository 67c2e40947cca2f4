//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			notebook UNINDEXED,
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, notebook, path, title, body string, tags []string) error {
	if err := ftsDelete(tx, whereNote, notebook, path); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO notes_fts (notebook, path, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		notebook, path, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, where string, args ...any) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE `+where, args...); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search. An empty notebook searches all
// notebooks.
func (db *DB) Search(query, notebook string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT notebook,
		       path,
		       title,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 64)
		FROM notes_fts
		WHERE notes_fts MATCH ? AND (? = '' OR notebook = ?)
		ORDER BY rank
		LIMIT ?
	`, query, notebook, notebook, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Notebook, &r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
