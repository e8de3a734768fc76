// Package vectorstore persists per-corpus embeddings in a columnar file
// and serves cosine similarity queries from a flat inner-product index.
package vectorstore

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
)

const (
	storeFileName = "store.gob"
	indexFileName = "index.gob"
)

// Store implements driven.VectorStore on top of two gob files: the
// columnar store (vectors plus typed metadata) and a sibling flat index
// holding only the vectors the search path scans. Every vector is
// L2-normalized on the way in, so inner product equals cosine
// similarity on the way out.
type Store struct {
	dir string

	mu      sync.RWMutex
	loaded  bool
	dim     int
	ids     []string
	vectors [][]float32
	meta    map[string]domain.ChunkMeta
	pos     map[string]int
}

var _ driven.VectorStore = (*Store)(nil)

// New returns a store rooted at dir. Call Open before any other method.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// storeFile is the on-disk shape of the columnar store.
type storeFile struct {
	Dim     int
	IDs     []string
	Vectors [][]float32
	Meta    []domain.ChunkMeta
}

// indexFile is the on-disk shape of the flat index. It carries its own
// copy of the vectors so a count mismatch against the store is
// detectable and repairable.
type indexFile struct {
	Dim     int
	Vectors [][]float32
}

// Open loads existing vectors and metadata if present, otherwise
// initializes an empty store.
func (s *Store) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &domain.StorageError{Op: "open", Path: s.dir, Err: err}
	}

	path := filepath.Join(s.dir, storeFileName)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.reset()
		s.loaded = true
		return nil
	}
	if err != nil {
		return &domain.StorageError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var sf storeFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return &domain.StorageError{Op: "decode", Path: path, Err: err}
	}
	if len(sf.IDs) != len(sf.Vectors) || len(sf.IDs) != len(sf.Meta) {
		return &domain.StorageError{Op: "decode", Path: path,
			Err: fmt.Errorf("column lengths disagree: %d ids, %d vectors, %d metadata",
				len(sf.IDs), len(sf.Vectors), len(sf.Meta))}
	}

	s.reset()
	s.dim = sf.Dim
	for i := range sf.IDs {
		id := sf.IDs[i]
		m := sf.Meta[i]
		if id == "" {
			// Rows written without an id get a stable positional one.
			id = fmt.Sprintf("row%d", i)
			m.ID = id
		}
		s.ids = append(s.ids, id)
		s.vectors = append(s.vectors, sf.Vectors[i])
		s.meta[id] = m
		s.pos[id] = i
	}
	s.loaded = true
	return nil
}

func (s *Store) reset() {
	s.dim = 0
	s.ids = nil
	s.vectors = nil
	s.meta = make(map[string]domain.ChunkMeta)
	s.pos = make(map[string]int)
}

// Append merges chunks into the store, replacing rows whose id already
// exists, then persists the store and rebuilds the index file.
func (s *Store) Append(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return domain.ErrNotLoaded
	}
	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return &domain.StorageError{Op: "append", Path: s.dir,
				Err: fmt.Errorf("chunk %s has an empty embedding", c.Meta.ID)}
		}
		if s.dim == 0 {
			s.dim = len(c.Embedding)
		}
		if len(c.Embedding) != s.dim {
			return &domain.StorageError{Op: "append", Path: s.dir,
				Err: fmt.Errorf("dimension mismatch: store holds %d, chunk %s has %d",
					s.dim, c.Meta.ID, len(c.Embedding))}
		}
	}

	for _, c := range chunks {
		vec := l2Normalize(c.Embedding)
		if i, ok := s.pos[c.Meta.ID]; ok {
			s.vectors[i] = vec
			s.meta[c.Meta.ID] = c.Meta
			continue
		}
		s.pos[c.Meta.ID] = len(s.ids)
		s.ids = append(s.ids, c.Meta.ID)
		s.vectors = append(s.vectors, vec)
		s.meta[c.Meta.ID] = c.Meta
	}

	if err := s.persistStoreLocked(); err != nil {
		return err
	}
	return s.persistIndexLocked()
}

// Search returns up to k hits descending by cosine similarity.
func (s *Store) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return nil, domain.ErrNotLoaded
	}
	if len(s.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, &domain.StorageError{Op: "search", Path: s.dir,
			Err: fmt.Errorf("dimension mismatch: store holds %d, query has %d", s.dim, len(query))}
	}

	q := l2Normalize(query)
	hits := make([]driven.VectorHit, 0, len(s.vectors))
	for i, v := range s.vectors {
		hits = append(hits, driven.VectorHit{ChunkID: s.ids[i], Score: dot(q, v)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// EnsureIndexConsistency rebuilds the index file when it is missing or
// its vector count disagrees with the store.
func (s *Store) EnsureIndexConsistency(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return false, domain.ErrNotLoaded
	}

	path := filepath.Join(s.dir, indexFileName)
	f, err := os.Open(path)
	if err == nil {
		var idx indexFile
		decErr := gob.NewDecoder(f).Decode(&idx)
		f.Close()
		if decErr == nil && len(idx.Vectors) == len(s.vectors) && idx.Dim == s.dim {
			return false, nil
		}
		if decErr == nil {
			logger.Warn("index at %s holds %d vectors, store holds %d, rebuilding", path, len(idx.Vectors), len(s.vectors))
		} else {
			logger.Warn("index at %s is unreadable, rebuilding: %v", path, decErr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, &domain.StorageError{Op: "open", Path: path, Err: err}
	} else if len(s.vectors) == 0 {
		// Nothing to index yet.
		return false, nil
	}

	if err := s.persistIndexLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of stored rows.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Meta returns the metadata record for id.
func (s *Store) Meta(id string) (domain.ChunkMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meta[id]
	return m, ok
}

// Snapshot returns a copy of the id to metadata map.
func (s *Store) Snapshot() map[string]domain.ChunkMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ChunkMeta, len(s.meta))
	for id, m := range s.meta {
		out[id] = m
	}
	return out
}

func (s *Store) persistStoreLocked() error {
	sf := storeFile{Dim: s.dim, IDs: s.ids, Vectors: s.vectors}
	sf.Meta = make([]domain.ChunkMeta, len(s.ids))
	for i, id := range s.ids {
		sf.Meta[i] = s.meta[id]
	}
	return writeGob(filepath.Join(s.dir, storeFileName), sf)
}

func (s *Store) persistIndexLocked() error {
	return writeGob(filepath.Join(s.dir, indexFileName), indexFile{Dim: s.dim, Vectors: s.vectors})
}

// writeGob encodes v to a temporary file and renames it into place so a
// crash mid-write never leaves a truncated file behind.
func writeGob(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return &domain.StorageError{Op: "write", Path: path, Err: err}
	}
	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &domain.StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &domain.StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &domain.StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
