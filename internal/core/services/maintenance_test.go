package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpusWatcher_RebuildsAfterIndexRemoval(t *testing.T) {
	m := newTestManager(t)
	seedChunk(t, m, "p1", "c1", []float32{1, 0})

	w := NewCorpusWatcher(m, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher install its watches before touching files.
	time.Sleep(100 * time.Millisecond)

	indexPath := filepath.Join(m.EntityDir("p1"), "index.gob")
	require.NoError(t, os.Remove(indexPath))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(indexPath)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "watcher should rebuild the removed index")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCorpusWatcher_WatchesNewEntityDirs(t *testing.T) {
	m := newTestManager(t)

	w := NewCorpusWatcher(m, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)

	// The entity appears only after the watcher started.
	seedChunk(t, m, "p9", "c1", []float32{0, 1})
	time.Sleep(100 * time.Millisecond)

	indexPath := filepath.Join(m.EntityDir("p9"), "index.gob")
	require.NoError(t, os.Remove(indexPath))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(indexPath)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "new entity directories should be watched too")
}

func TestCorpusWatcher_IgnoresForeignDirs(t *testing.T) {
	m := newTestManager(t)
	w := NewCorpusWatcher(m, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)

	// Files outside patient_ directories never trigger a check.
	foreign := filepath.Join(m.corporaDir, "scratch")
	require.NoError(t, os.MkdirAll(foreign, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(foreign, "note.txt"), []byte("x"), 0o600))

	time.Sleep(200 * time.Millisecond)

	w.mu.Lock()
	scheduled := len(w.pending)
	w.mu.Unlock()
	assert.Zero(t, scheduled)
}
