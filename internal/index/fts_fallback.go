//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the body stored in the notes table is searched with LIKE.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string, _ ...any) error { return nil }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search performs a LIKE-based search. An empty notebook searches all
// notebooks.
func (db *DB) Search(query, notebook string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT notebook, path, title, substr(body, 1, 200)
		FROM notes
		WHERE (title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')
		  AND (? = '' OR notebook = ?)
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, like, notebook, notebook, limit)
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
