package driven

import "context"

// SparseIndex is a persistent lexical index over one corpus's chunk
// texts, ranked with a BM25-family scoring function.
//
// Index maintenance is best-effort relative to the vector store: a
// missing or unqueryable index degrades retrieval to dense-only instead
// of failing the call.
type SparseIndex interface {
	// Upsert adds or replaces the text indexed under id. Re-upserting
	// the same id never duplicates.
	Upsert(ctx context.Context, id, text string) error

	// Delete removes id from the index. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// Search tokenizes the query with the index analyzer and returns up
	// to k ranked hits, higher score first. A query with zero tokens
	// returns an empty result and no error.
	Search(ctx context.Context, query string, k int) ([]SparseHit, error)

	// Close releases the underlying index.
	Close() error
}

// SparseHit is one lexical search result.
type SparseHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the BM25 relevance score, higher is better.
	Score float64
}
