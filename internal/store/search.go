package store

import (
	"context"
	"strings"

	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

// SearchResult is one matching file.
type SearchResult struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Search returns files matching every term of query, best first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, cerrors.New(cerrors.ErrCodeQueryEmpty, "query has no searchable terms", nil).
			WithSuggestion("use words of at least two letters or digits")
	}
	if limit <= 0 {
		limit = 20
	}

	// Quoting each term keeps FTS5 operators in user input literal.
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// bm25() is lower for better matches.
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, bm25(fts_content) AS score, snippet(fts_content, 1, '[', ']', '...', 8)
		FROM fts_content
		WHERE fts_content MATCH ?
		ORDER BY score
		LIMIT ?`, strings.Join(quoted, " "), limit)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "search index", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Score, &r.Snippet); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "read search result", err)
		}
		r.Score = -r.Score
		results = append(results, r)
	}
	return results, rows.Err()
}
