package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

func seedChunk(t *testing.T, m *CorpusManager, entityID, chunkID string, vec []float32) {
	t.Helper()
	store, err := m.Store(context.Background(), entityID)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), []domain.Chunk{{
		Meta:      domain.ChunkMeta{ID: chunkID, EntityID: entityID, Text: "contenu " + chunkID},
		Embedding: vec,
	}}))
}

func TestCorpusManager_ReadyUnknownEntity(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Ready(context.Background(), "p1"))

	// A readiness probe must not create corpus files.
	_, err := os.Stat(m.EntityDir("p1"))
	assert.True(t, os.IsNotExist(err))
}

func TestCorpusManager_ReadyAfterSeed(t *testing.T) {
	m := newTestManager(t)
	seedChunk(t, m, "p1", "c1", []float32{1, 0})
	assert.True(t, m.Ready(context.Background(), "p1"))
	assert.False(t, m.Ready(context.Background(), "p2"))
}

func TestCorpusManager_StoreIsCached(t *testing.T) {
	m := newTestManager(t)
	a, err := m.Store(context.Background(), "p1")
	require.NoError(t, err)
	b, err := m.Store(context.Background(), "p1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCorpusManager_EnsureConsistency(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedChunk(t, m, "p1", "c1", []float32{1, 0})

	rebuilt, err := m.EnsureConsistency(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, rebuilt)

	require.NoError(t, os.Remove(filepath.Join(m.EntityDir("p1"), "index.gob")))

	// A fresh manager sees the missing index and repairs it.
	m2 := NewCorpusManager(m.corporaDir, m.newStore, m.newSparse)
	rebuilt, err = m2.EnsureConsistency(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, rebuilt)
}

func TestCorpusManager_Purge(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	seedChunk(t, m, "p1", "c1", []float32{1, 0})

	x, err := m.Sparse(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, x.Upsert(ctx, "c1", "contenu"))

	require.NoError(t, m.Purge(ctx, "p1"))

	_, err = os.Stat(m.EntityDir("p1"))
	assert.True(t, os.IsNotExist(err))
	assert.False(t, m.Ready(ctx, "p1"))
}

func TestCorpusManager_SparseIndexLivesInOwnDir(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	x, err := m.Sparse(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, x.Upsert(ctx, "c1", "contenu"))

	// The lexical index sits in its own subdirectory, never next to the
	// vector store files.
	_, err = os.Stat(filepath.Join(m.EntityDir("p1"), "bm25", "sparse.db"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(m.EntityDir("p1"), "sparse.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestCorpusManager_List(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	seedChunk(t, m, "p2", "c1", []float32{1, 0})
	seedChunk(t, m, "p1", "c1", []float32{1, 0})

	ids, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestCorpusManager_LockEntitySerializes(t *testing.T) {
	m := newTestManager(t)

	unlock := m.LockEntity("p1")
	acquired := make(chan struct{})
	go func() {
		u := m.LockEntity("p1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
}

func TestCorpusManager_InvalidEntity(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Store(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, m.Purge(context.Background(), ""), domain.ErrInvalidInput)
}
