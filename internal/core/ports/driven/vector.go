package driven

import (
	"context"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

// VectorStore persists one corpus's vectors and metadata and answers
// nearest-neighbour queries over them. One instance owns one entity's
// store file and its sibling index file.
//
// The store guarantees row count == metadata count, L2-normalizes every
// vector before storage and comparison, and rebuilds the index from
// stored vectors whenever the two disagree.
type VectorStore interface {
	// Open loads existing vectors and metadata if present, otherwise
	// initializes an empty store. Builds the id to metadata map.
	Open(ctx context.Context) error

	// Append merges new rows into the store and persists. Fails with a
	// *domain.StorageError on dimension mismatch. Rows whose metadata id
	// matches an existing row replace it in place (upsert).
	Append(ctx context.Context, chunks []domain.Chunk) error

	// Search normalizes the query vector and returns up to k (id, score)
	// pairs descending by cosine similarity. An empty store returns an
	// empty list; a store that was never opened returns
	// domain.ErrNotLoaded.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// EnsureIndexConsistency rebuilds the index file from stored vectors
	// when it is missing or its vector count disagrees with the store.
	// Returns true when a rebuild happened.
	EnsureIndexConsistency(ctx context.Context) (bool, error)

	// Count returns the number of stored rows.
	Count() int

	// Meta returns the metadata record for id.
	Meta(id string) (domain.ChunkMeta, bool)

	// Snapshot returns an immutable copy of the id to metadata map as of
	// the call. Retrieval resolves sparse-only hits against one snapshot
	// so a concurrent re-index never mixes corpus generations.
	Snapshot() map[string]domain.ChunkMeta
}

// VectorHit is one dense search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the cosine similarity (normalized inner product).
	Score float64
}
