package driving

import "context"

// CorpusAdmin exposes corpus maintenance operations.
type CorpusAdmin interface {
	// Ready reports whether the entity has a non-empty indexed corpus.
	Ready(ctx context.Context, entityID string) bool

	// EnsureConsistency checks the entity's index file against its
	// stored vectors and rebuilds it when they disagree. Returns true
	// when a rebuild happened.
	EnsureConsistency(ctx context.Context, entityID string) (bool, error)

	// Purge removes the entity's corpus directory and sparse index.
	// This is the only destructive corpus operation.
	Purge(ctx context.Context, entityID string) error

	// List returns the entity ids with a corpus on disk.
	List(ctx context.Context) ([]string, error)
}
