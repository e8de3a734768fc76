package driven

import "context"

// Reranker scores (query, passage) pairs with a cross-encoder. This is
// an optional second retrieval pass - when nil or failing, callers keep
// fused-score order.
//
// Score is batched: all candidate passages are scored in one call to
// amortize model invocation overhead.
type Reranker interface {
	// Score returns one relevance score per passage, index-aligned with
	// the input. Empty passages are scored like any other string.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// Close releases resources.
	Close() error
}
