package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driving"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
	"github.com/Anonymous1223334444/mediServe/internal/metrics"
)

// Ensure CorpusManager implements the interface.
var _ driving.CorpusAdmin = (*CorpusManager)(nil)

// entityDirPrefix namespaces per-entity corpus directories.
const entityDirPrefix = "patient_"

// StoreFactory builds a vector store rooted at dir.
type StoreFactory func(dir string) driven.VectorStore

// SparseFactory builds or opens a sparse index rooted at dir.
type SparseFactory func(dir string) (driven.SparseIndex, error)

// CorpusManager owns the per-entity corpora: it opens stores and
// sparse indexes lazily, caches them for the process lifetime, and
// serializes ingestion per entity.
type CorpusManager struct {
	corporaDir string
	newStore   StoreFactory
	newSparse  SparseFactory
	collector  *metrics.Collector

	mu      sync.Mutex
	stores  map[string]driven.VectorStore
	sparses map[string]driven.SparseIndex
	locks   map[string]*sync.Mutex
}

// NewCorpusManager creates a corpus manager over corporaDir.
func NewCorpusManager(corporaDir string, newStore StoreFactory, newSparse SparseFactory) *CorpusManager {
	return &CorpusManager{
		corporaDir: corporaDir,
		newStore:   newStore,
		newSparse:  newSparse,
		stores:     make(map[string]driven.VectorStore),
		sparses:    make(map[string]driven.SparseIndex),
		locks:      make(map[string]*sync.Mutex),
	}
}

// SetMetrics attaches the Prometheus collector. Optional.
func (m *CorpusManager) SetMetrics(c *metrics.Collector) {
	m.collector = c
}

// EntityDir returns the corpus directory for an entity.
func (m *CorpusManager) EntityDir(entityID string) string {
	return filepath.Join(m.corporaDir, entityDirPrefix+entityID)
}

// Store returns the entity's vector store, opening it on first use.
func (m *CorpusManager) Store(ctx context.Context, entityID string) (driven.VectorStore, error) {
	if entityID == "" {
		return nil, domain.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[entityID]; ok {
		return s, nil
	}

	s := m.newStore(m.EntityDir(entityID))
	if err := s.Open(ctx); err != nil {
		return nil, fmt.Errorf("opening corpus for %s: %w", entityID, err)
	}
	m.stores[entityID] = s
	return s, nil
}

// Sparse returns the entity's sparse index, opening it on first use.
func (m *CorpusManager) Sparse(_ context.Context, entityID string) (driven.SparseIndex, error) {
	if entityID == "" {
		return nil, domain.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if x, ok := m.sparses[entityID]; ok {
		return x, nil
	}

	x, err := m.newSparse(m.EntityDir(entityID))
	if err != nil {
		return nil, fmt.Errorf("opening sparse index for %s: %w", entityID, err)
	}
	m.sparses[entityID] = x
	return x, nil
}

// LockEntity serializes ingestion for one entity. The returned func
// releases the lock.
func (m *CorpusManager) LockEntity(entityID string) func() {
	m.mu.Lock()
	l, ok := m.locks[entityID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[entityID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Ready reports whether the entity has a non-empty indexed corpus. It
// never creates corpus files for unknown entities.
func (m *CorpusManager) Ready(ctx context.Context, entityID string) bool {
	if entityID == "" {
		return false
	}

	m.mu.Lock()
	s, cached := m.stores[entityID]
	m.mu.Unlock()
	if cached {
		return s.Count() > 0
	}

	if _, err := os.Stat(m.EntityDir(entityID)); err != nil {
		return false
	}

	s, err := m.Store(ctx, entityID)
	if err != nil {
		logger.Warn("readiness check for %s: %v", entityID, err)
		return false
	}
	return s.Count() > 0
}

// EnsureConsistency rebuilds the entity's index file when it disagrees
// with the stored vectors.
func (m *CorpusManager) EnsureConsistency(ctx context.Context, entityID string) (bool, error) {
	s, err := m.Store(ctx, entityID)
	if err != nil {
		return false, err
	}

	rebuilt, err := s.EnsureIndexConsistency(ctx)
	if err != nil {
		return false, err
	}
	if rebuilt {
		logger.Info("rebuilt index for entity %s (%d vectors)", entityID, s.Count())
		if m.collector != nil {
			m.collector.IndexRebuilds.Inc()
		}
	}
	return rebuilt, nil
}

// Purge removes the entity's corpus directory and evicts its cached
// handles.
func (m *CorpusManager) Purge(_ context.Context, entityID string) error {
	if entityID == "" {
		return domain.ErrInvalidInput
	}

	m.mu.Lock()
	if x, ok := m.sparses[entityID]; ok {
		if err := x.Close(); err != nil {
			logger.Warn("closing sparse index for %s: %v", entityID, err)
		}
		delete(m.sparses, entityID)
	}
	delete(m.stores, entityID)
	m.mu.Unlock()

	dir := m.EntityDir(entityID)
	if err := os.RemoveAll(dir); err != nil {
		return &domain.StorageError{Op: "purge", Path: dir, Err: err}
	}

	logger.Info("purged corpus for entity %s", entityID)
	return nil
}

// List returns the entity ids with a corpus on disk, sorted.
func (m *CorpusManager) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.corporaDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corpora directory: %w", err)
	}

	var ids []string //nolint:prealloc // most entries may not match
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), entityDirPrefix) {
			ids = append(ids, strings.TrimPrefix(e.Name(), entityDirPrefix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases every cached sparse index.
func (m *CorpusManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, x := range m.sparses {
		if err := x.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing sparse index for %s: %w", id, err)
		}
		delete(m.sparses, id)
	}
	return firstErr
}
