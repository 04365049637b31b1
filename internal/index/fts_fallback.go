//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search matches every term with LIKE.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search returns notes containing every term of query in their title, body
// or tags, newest first, optionally limited to one project.
func (db *DB) Search(query, project string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		p := likePattern(t)
		where = append(where, `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}
	args = append(args, project, project, limit)

	rows, err := db.conn.Query(`
		SELECT path, title, kind, project, body
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		  AND (? = '' OR project = ?)
		ORDER BY date DESC, path
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			body string
		)
		if err := rows.Scan(&r.Path, &r.Title, &r.Kind, &r.Project, &body); err != nil {
			return nil, err
		}
		r.Snippet = snippetAround(body, terms)
		out = append(out, r)
	}
	return out, rows.Err()
}
