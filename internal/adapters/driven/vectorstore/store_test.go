package vectorstore

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

func chunk(id string, vec []float32) domain.Chunk {
	return domain.Chunk{
		Meta:      domain.ChunkMeta{ID: id, EntityID: "p1", SourceType: domain.SourceTypeText, Text: "t " + id},
		Embedding: vec,
	}
}

func TestStore_OpenEmpty(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, 0, s.Count())

	hits, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_SearchRequiresOpen(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Search(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
}

func TestStore_AppendAndSearch(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.Append(ctx, []domain.Chunk{
		chunk("a", []float32{1, 0, 0}),
		chunk("b", []float32{0, 1, 0}),
		chunk("c", []float32{0.9, 0.1, 0}),
	}))
	assert.Equal(t, 3, s.Count())

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "c", hits[1].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestStore_SearchNormalizesQuery(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{3, 4})}))

	// A scaled query must produce the same cosine score.
	small, err := s.Search(ctx, []float32{3, 4}, 1)
	require.NoError(t, err)
	big, err := s.Search(ctx, []float32{30, 40}, 1)
	require.NoError(t, err)
	assert.InDelta(t, small[0].Score, big[0].Score, 1e-9)
	assert.InDelta(t, 1.0, small[0].Score, 1e-6)
}

func TestStore_AppendUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{1, 0})}))
	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{0, 1})}))
	assert.Equal(t, 1, s.Count())

	hits, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestStore_AppendDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{1, 0, 0})}))

	err := s.Append(ctx, []domain.Chunk{chunk("b", []float32{1, 0})})
	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "append", serr.Op)
	assert.Equal(t, 1, s.Count())
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := New(dir)
	require.NoError(t, s.Open(ctx))
	c := chunk("a", []float32{1, 2, 2})
	c.Meta.DocumentID = "42"
	c.Meta.Page = 3
	c.Meta.SourceType = domain.SourceTypeTable
	require.NoError(t, s.Append(ctx, []domain.Chunk{c}))

	reopened := New(dir)
	require.NoError(t, reopened.Open(ctx))
	assert.Equal(t, 1, reopened.Count())

	m, ok := reopened.Meta("a")
	require.True(t, ok)
	assert.Equal(t, "42", m.DocumentID)
	assert.Equal(t, 3, m.Page)
	assert.Equal(t, domain.SourceTypeTable, m.SourceType)

	hits, err := reopened.Search(ctx, []float32{1, 2, 2}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestStore_EnsureIndexConsistency(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := New(dir)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{1, 0})}))

	rebuilt, err := s.EnsureIndexConsistency(ctx)
	require.NoError(t, err)
	assert.False(t, rebuilt, "a fresh index must not be rebuilt")

	// Simulate a crash that lost the index file but kept the store.
	require.NoError(t, os.Remove(filepath.Join(dir, "index.gob")))

	reopened := New(dir)
	require.NoError(t, reopened.Open(ctx))
	rebuilt, err = reopened.EnsureIndexConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	rebuilt, err = reopened.EnsureIndexConsistency(ctx)
	require.NoError(t, err)
	assert.False(t, rebuilt, "rebuild must converge")
}

func TestStore_EnsureIndexConsistencyCorruptIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := New(dir)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{1, 0})}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.gob"), []byte("garbage"), 0o644))

	rebuilt, err := s.EnsureIndexConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Append(ctx, []domain.Chunk{chunk("a", []float32{1, 0})}))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	snap["a"] = domain.ChunkMeta{ID: "mutated"}

	m, ok := s.Meta("a")
	require.True(t, ok)
	assert.Equal(t, "a", m.ID)
}

func TestL2Normalize(t *testing.T) {
	v := l2Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	zero := l2Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
