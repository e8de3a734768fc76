// Package sparse implements the lexical index on SQLite FTS5 with BM25
// ranking.
package sparse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Anonymous1223334444/mediServe/internal/analysis"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// Index is a per-corpus FTS5 index. Texts are folded to lowercase
// ASCII before indexing, and queries go through the same analyzer, so
// "diabète" and "diabete" hit the same postings.
type Index struct {
	db   *sql.DB
	path string
}

var _ driven.SparseIndex = (*Index)(nil)

// Open creates or opens the index database inside dir.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	path := filepath.Join(dir, "sparse.db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	_, err = db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fts table: %w", err)
	}

	return &Index{db: db, path: path}, nil
}

// Upsert adds or replaces the text indexed under id.
func (x *Index) Upsert(ctx context.Context, id, text string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?", id); err != nil {
		return fmt.Errorf("replacing indexed text: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chunks_fts (chunk_id, body) VALUES (?, ?)",
		id, analysis.Fold(text)); err != nil {
		return fmt.Errorf("indexing text: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete removes id from the index.
func (x *Index) Delete(ctx context.Context, id string) error {
	if _, err := x.db.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?", id); err != nil {
		return fmt.Errorf("deleting indexed text: %w", err)
	}
	return nil
}

// Search tokenizes the query and returns up to k hits, best first.
// FTS5's bm25() ranks lower-is-better, so scores are negated to match
// the higher-is-better contract.
func (x *Index) Search(ctx context.Context, query string, k int) ([]driven.SparseHit, error) {
	tokens := analysis.Tokenize(query)
	if len(tokens) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts) AS rank
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, matchExpr(tokens), k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var hits []driven.SparseHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var h driven.SparseHit
		var rank float64
		if err := rows.Scan(&h.ChunkID, &rank); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

// Close releases the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

// matchExpr builds an OR query of quoted tokens. Quoting keeps analyzer
// output from being parsed as FTS5 operators.
func matchExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
