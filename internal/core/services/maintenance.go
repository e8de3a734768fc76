package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Anonymous1223334444/mediServe/internal/logger"
)

// CorpusWatcher watches the corpora directory and re-checks index
// consistency when corpus files change underneath the service, e.g.
// after a restore from backup or a manual file copy.
type CorpusWatcher struct {
	corpora  *CorpusManager
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewCorpusWatcher creates a watcher over the manager's corpora
// directory. debounce batches rapid event bursts per entity.
func NewCorpusWatcher(corpora *CorpusManager, debounce time.Duration) *CorpusWatcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &CorpusWatcher{
		corpora:  corpora,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Run blocks watching for corpus file events until ctx is cancelled.
func (w *CorpusWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := os.MkdirAll(w.corpora.corporaDir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(w.corpora.corporaDir); err != nil {
		return err
	}

	// Existing entity directories need their own watch; the root watch
	// only sees new ones appear.
	entries, err := os.ReadDir(w.corpora.corporaDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := watcher.Add(filepath.Join(w.corpora.corporaDir, e.Name())); err != nil {
				logger.Warn("watching %s: %v", e.Name(), err)
			}
		}
	}

	logger.Info("watching %s for corpus changes", w.corpora.corporaDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("corpus watcher: %v", err)
		}
	}
}

func (w *CorpusWatcher) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	rel, err := filepath.Rel(w.corpora.corporaDir, event.Name)
	if err != nil {
		return
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if !strings.HasPrefix(parts[0], entityDirPrefix) {
		return
	}
	entityID := strings.TrimPrefix(parts[0], entityDirPrefix)

	// A new entity directory appearing under the root gets watched.
	if len(parts) == 1 && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				logger.Warn("watching %s: %v", event.Name, err)
			}
		}
		return
	}

	if len(parts) < 2 || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
		return
	}

	w.schedule(ctx, entityID)
}

// schedule runs a consistency check for the entity after the debounce
// window; further events within the window reset the timer.
func (w *CorpusWatcher) schedule(ctx context.Context, entityID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[entityID]; ok {
		t.Reset(w.debounce)
		return
	}

	w.pending[entityID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, entityID)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.corpora.EnsureConsistency(ctx, entityID); err != nil {
			logger.Warn("consistency check for %s: %v", entityID, err)
		}
	})
}
