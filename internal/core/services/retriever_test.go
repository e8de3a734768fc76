package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// seedCorpus loads three chunks with known vectors and texts into both
// the vector store and the sparse index.
func seedCorpus(t *testing.T, m *CorpusManager, entityID string) {
	t.Helper()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{
			Meta:      domain.ChunkMeta{ID: "c-insuline", EntityID: entityID, SourceType: domain.SourceTypeText, Page: 1, Text: "dosage insuline matinal"},
			Embedding: []float32{1, 0},
		},
		{
			Meta:      domain.ChunkMeta{ID: "c-tension", EntityID: entityID, SourceType: domain.SourceTypeText, Page: 2, Text: "tension arterielle stable"},
			Embedding: []float32{0.6, 0.8},
		},
		{
			Meta:      domain.ChunkMeta{ID: "c-vaccin", EntityID: entityID, SourceType: domain.SourceTypeTable, Page: 3, Text: "calendrier vaccinal complet"},
			Embedding: []float32{0, 1},
		},
	}

	store, err := m.Store(ctx, entityID)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, chunks))

	x, err := m.Sparse(ctx, entityID)
	require.NoError(t, err)
	for _, c := range chunks {
		require.NoError(t, x.Upsert(ctx, c.Meta.ID, c.Meta.Text))
	}
}

func queryEmbedder() *mockEmbedder {
	return &mockEmbedder{dim: 2, vectors: map[string][]float32{
		"insuline": {1, 0},
		"vaccin":   {0, 1},
	}}
}

func TestRetrieve_CorpusNotReady(t *testing.T) {
	r := NewHybridRetriever(newTestManager(t), queryEmbedder(), nil)
	_, err := r.Retrieve(context.Background(), "ghost", "insuline", domain.RetrievalOptions{})
	assert.ErrorIs(t, err, domain.ErrCorpusNotReady)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, queryEmbedder(), nil)
	resp, err := r.Retrieve(context.Background(), "p1", "   ", domain.RetrievalOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Degradations)
}

func TestRetrieve_FusesBothSignals(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, queryEmbedder(), nil)
	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 3, Alpha: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	// "dosage insuline matinal" wins on both columns.
	top := resp.Results[0]
	assert.Equal(t, "c-insuline", top.Chunk.ID)
	assert.InDelta(t, 1.0, top.FusedScore, 1e-9, "the double max must fuse to exactly 1")

	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].FusedScore, resp.Results[i].FusedScore)
	}
}

func TestRetrieve_MergeKeepsSingleColumnHits(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, queryEmbedder(), nil)
	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 5})
	require.NoError(t, err)

	byID := make(map[string]domain.RetrievalResult)
	for _, res := range resp.Results {
		byID[res.Chunk.ID] = res
	}

	// The tension chunk never matches "insuline" lexically, so it is a
	// dense-only candidate and keeps 0 in the sparse column.
	tension, ok := byID["c-tension"]
	require.True(t, ok)
	assert.Greater(t, tension.DenseScore, 0.0)
	assert.Equal(t, 0.0, tension.SparseScore)
}

func TestRetrieve_AlphaExtremes(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")
	r := NewHybridRetriever(m, queryEmbedder(), nil)

	// Alpha 1: pure dense, the vaccine chunk wins on its vector even
	// though the query text never mentions it.
	resp, err := r.Retrieve(context.Background(), "p1", "vaccin", domain.RetrievalOptions{TopK: 1, Alpha: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c-vaccin", resp.Results[0].Chunk.ID)

	// Alpha very small: sparse dominates for a lexical match.
	resp, err = r.Retrieve(context.Background(), "p1", "tension arterielle", domain.RetrievalOptions{TopK: 1, Alpha: 0.01})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c-tension", resp.Results[0].Chunk.ID)
}

func TestRetrieve_SparseUnavailableDegrades(t *testing.T) {
	base := newTestManager(t)
	seedCorpus(t, base, "p1")

	// Same corpus files, but every sparse open fails.
	m := NewCorpusManager(base.corporaDir, base.newStore,
		func(string) (driven.SparseIndex, error) { return nil, errors.New("index locked") })

	r := NewHybridRetriever(m, queryEmbedder(), nil)
	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results, "dense-only retrieval must still answer")
	assert.Contains(t, resp.Degradations, domain.DegradedSparseUnavailable)
}

func TestRetrieve_EmbeddingFailureIsFatal(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, &mockEmbedder{dim: 2, err: errors.New("backend down")}, nil)
	_, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{})
	var eerr *domain.EmbeddingError
	assert.ErrorAs(t, err, &eerr)
}

func TestRetrieve_RerankReorders(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	// The cross-encoder prefers the vaccine chunk regardless of fusion.
	rr := &mockReranker{score: func(p string) float64 {
		if p == "calendrier vaccinal complet" {
			return 10
		}
		return 1
	}}

	r := NewHybridRetriever(m, queryEmbedder(), rr)
	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 3, Rerank: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	assert.Equal(t, "c-vaccin", resp.Results[0].Chunk.ID)
	require.NotNil(t, resp.Results[0].RerankScore)
	assert.Equal(t, 10.0, *resp.Results[0].RerankScore)
	assert.Equal(t, 1, rr.calls)
	assert.NotContains(t, resp.Degradations, domain.DegradedRerankUnavailable)
}

func TestRetrieve_RerankPromotesUnscoredCandidate(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	// The cross-encoder rejects everything it sees. With top-k 1 only the
	// two best fused candidates get scored, so the third keeps its fused
	// score and must rise above both rejected ones in the final order.
	rr := &mockReranker{score: func(string) float64 { return -1 }}
	r := NewHybridRetriever(m, queryEmbedder(), rr)

	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 1, Alpha: 0.5, Rerank: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	assert.Equal(t, "c-vaccin", resp.Results[0].Chunk.ID)
	assert.Nil(t, resp.Results[0].RerankScore)
	assert.GreaterOrEqual(t, resp.Results[0].FusedScore, 0.0)
}

func TestRetrieve_RerankHandlesEmptyPassage(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	chunks := []domain.Chunk{
		{
			Meta:      domain.ChunkMeta{ID: "c-blank", EntityID: "p1", SourceType: domain.SourceTypeText, Page: 1, Text: ""},
			Embedding: []float32{1, 0},
		},
		{
			Meta:      domain.ChunkMeta{ID: "c-insuline", EntityID: "p1", SourceType: domain.SourceTypeText, Page: 1, Text: "dosage insuline matinal"},
			Embedding: []float32{0.9, 0.1},
		},
	}
	store, err := m.Store(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, chunks))
	x, err := m.Sparse(ctx, "p1")
	require.NoError(t, err)
	for _, c := range chunks {
		require.NoError(t, x.Upsert(ctx, c.Meta.ID, c.Meta.Text))
	}

	// A chunk with no text still goes through the cross-encoder as an
	// empty passage and is scored like any other.
	rr := &mockReranker{score: func(p string) float64 {
		if p == "" {
			return 5
		}
		return 1
	}}
	r := NewHybridRetriever(m, queryEmbedder(), rr)

	resp, err := r.Retrieve(ctx, "p1", "insuline", domain.RetrievalOptions{TopK: 2, Rerank: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "c-blank", resp.Results[0].Chunk.ID)
	require.NotNil(t, resp.Results[0].RerankScore)
	assert.Equal(t, 5.0, *resp.Results[0].RerankScore)
	assert.NotContains(t, resp.Degradations, domain.DegradedRerankUnavailable)
}

func TestRetrieve_RerankFailureKeepsFusedOrder(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	rr := &mockReranker{err: errors.New("model cold")}
	r := NewHybridRetriever(m, queryEmbedder(), rr)

	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 3, Rerank: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "c-insuline", resp.Results[0].Chunk.ID)
	assert.Nil(t, resp.Results[0].RerankScore)
	assert.Contains(t, resp.Degradations, domain.DegradedRerankUnavailable)
}

func TestRetrieve_RerankRequestedWithoutBackend(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, queryEmbedder(), nil)
	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 3, Rerank: true})
	require.NoError(t, err)
	assert.Contains(t, resp.Degradations, domain.DegradedRerankUnavailable)
}

func TestRetrieve_TopKTruncates(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, queryEmbedder(), nil)
	resp, err := r.Retrieve(context.Background(), "p1", "insuline", domain.RetrievalOptions{TopK: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestFuse_ZeroColumns(t *testing.T) {
	snapshot := map[string]domain.ChunkMeta{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}
	scores := map[string]*merged{
		"a": {dense: 0, sparse: 2},
		"b": {dense: 0, sparse: 1},
	}

	var degradations []domain.Degradation
	results := fuse(scores, snapshot, 0.5, &degradations)

	require.Len(t, results, 2)
	assert.Contains(t, degradations, domain.DegradedDenseZero)
	assert.NotContains(t, degradations, domain.DegradedSparseZero)
	assert.Equal(t, "a", results[0].Chunk.ID)
	// Only the sparse column contributes: alpha * 0 + (1-alpha) * 1.
	assert.InDelta(t, 0.5, results[0].FusedScore, 1e-9)
}

func TestRetrieve_SparseOnlyHitAppears(t *testing.T) {
	m := newTestManager(t)
	seedCorpus(t, m, "p1")

	r := NewHybridRetriever(m, queryEmbedder(), nil)

	// DenseK 1 keeps only the best dense candidate; the vaccine chunk
	// reaches the results through the sparse column alone.
	resp, err := r.Retrieve(context.Background(), "p1", "calendrier vaccinal",
		domain.RetrievalOptions{TopK: 5, Alpha: 0.5, DenseK: 1})
	require.NoError(t, err)

	byID := make(map[string]domain.RetrievalResult)
	for _, res := range resp.Results {
		byID[res.Chunk.ID] = res
	}

	vaccin, ok := byID["c-vaccin"]
	require.True(t, ok)
	assert.Equal(t, 0.0, vaccin.DenseScore)
	assert.Greater(t, vaccin.SparseScore, 0.0)
}

func TestFuse_NormalizationInvariant(t *testing.T) {
	snapshot := map[string]domain.ChunkMeta{
		"a": {ID: "a"}, "b": {ID: "b"}, "c": {ID: "c"},
	}
	scores := map[string]*merged{
		"a": {dense: 0.9, sparse: 12.5},
		"b": {dense: 0.3},
		"c": {sparse: 3.1},
	}

	var degradations []domain.Degradation
	for _, alpha := range []float64{0, 0.3, 0.5, 1} {
		results := fuse(scores, snapshot, alpha, &degradations)
		for _, res := range results {
			assert.GreaterOrEqual(t, res.FusedScore, 0.0)
			assert.LessOrEqual(t, res.FusedScore, 1.0)
		}
	}
}

func TestFuse_Monotonicity(t *testing.T) {
	snapshot := map[string]domain.ChunkMeta{"hi": {ID: "hi"}, "lo": {ID: "lo"}}

	// Equal sparse, strictly higher dense: "hi" never ranks below "lo"
	// at any alpha.
	scores := map[string]*merged{
		"hi": {dense: 0.8, sparse: 4},
		"lo": {dense: 0.2, sparse: 4},
	}

	var degradations []domain.Degradation
	for _, alpha := range []float64{0.1, 0.25, 0.5, 0.75, 1} {
		results := fuse(scores, snapshot, alpha, &degradations)
		require.Len(t, results, 2)
		assert.Equal(t, "hi", results[0].Chunk.ID, "alpha %v", alpha)
	}
}

func TestFuse_DefaultsSourceType(t *testing.T) {
	snapshot := map[string]domain.ChunkMeta{"a": {ID: "a"}}
	scores := map[string]*merged{"a": {dense: 1}}

	var degradations []domain.Degradation
	results := fuse(scores, snapshot, 1, &degradations)
	require.Len(t, results, 1)
	assert.Equal(t, domain.SourceTypeText, results[0].Chunk.SourceType)
}
