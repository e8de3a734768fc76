package domain

// Default retrieval parameters, matching the historical behaviour of the
// patient assistant.
const (
	// DefaultTopK is the number of passages returned to the caller.
	DefaultTopK = 5

	// DefaultAlpha weighs dense against sparse in score fusion.
	DefaultAlpha = 0.5

	// DefaultDenseK is the candidate depth of the dense search.
	DefaultDenseK = 10

	// DefaultSparseK is the candidate depth of the sparse search.
	DefaultSparseK = 10
)

// RetrievalOptions tunes one retrieval call.
type RetrievalOptions struct {
	// TopK is the number of results to return (default 5).
	TopK int

	// Alpha in [0,1] weighs the dense signal; 1-Alpha weighs sparse.
	Alpha float64

	// DenseK is how many dense candidates to fetch before fusion.
	DenseK int

	// SparseK is how many sparse candidates to fetch before fusion.
	SparseK int

	// Rerank enables the second-pass cross-encoder over the top 2*TopK
	// fused candidates.
	Rerank bool
}

// Normalize fills zero fields with defaults and clamps Alpha to [0,1].
func (o RetrievalOptions) Normalize() RetrievalOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.DenseK <= 0 {
		o.DenseK = DefaultDenseK
	}
	if o.SparseK <= 0 {
		o.SparseK = DefaultSparseK
	}
	if o.Alpha < 0 {
		o.Alpha = 0
	}
	if o.Alpha > 1 {
		o.Alpha = 1
	}
	return o
}

// RetrievalResult is one ranked passage with its per-signal scores.
// Ephemeral: produced per query, never persisted.
type RetrievalResult struct {
	// Chunk is the matched chunk's metadata record.
	Chunk ChunkMeta `json:"chunk"`

	// DenseScore is the raw cosine similarity, 0 when the chunk was not
	// in the dense candidates.
	DenseScore float64 `json:"dense_score"`

	// SparseScore is the raw BM25 score, 0 when the chunk was not in the
	// sparse candidates.
	SparseScore float64 `json:"sparse_score"`

	// FusedScore is the alpha-weighted sum of the normalized columns.
	// When reranking ran for this result it holds the rerank score.
	FusedScore float64 `json:"fused_score"`

	// RerankScore is the cross-encoder score, nil when reranking did not
	// run for this result.
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// Degradation is a non-fatal retrieval fallback notice. Degradations are
// reported, never raised as errors.
type Degradation string

// Documented retrieval degradations.
const (
	// DegradedDenseZero: every dense score was exactly 0, the dense
	// column was left unnormalized at 0.
	DegradedDenseZero Degradation = "dense_scores_zero"

	// DegradedSparseZero: every sparse score was exactly 0.
	DegradedSparseZero Degradation = "sparse_scores_zero"

	// DegradedSparseUnavailable: the sparse index was absent or failed,
	// the call proceeded dense-only.
	DegradedSparseUnavailable Degradation = "sparse_unavailable"

	// DegradedRerankUnavailable: the reranker was absent or failed, the
	// call kept fused-score order.
	DegradedRerankUnavailable Degradation = "rerank_unavailable"
)
