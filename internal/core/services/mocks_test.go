package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/sparse"
	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/vectorstore"
	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// newTestManager wires a corpus manager over real store adapters in a
// temp directory.
func newTestManager(t *testing.T) *CorpusManager {
	t.Helper()
	return NewCorpusManager(t.TempDir(),
		func(dir string) driven.VectorStore { return vectorstore.New(dir) },
		func(dir string) (driven.SparseIndex, error) { return sparse.Open(filepath.Join(dir, "bm25")) },
	)
}

// mockEmbedder returns canned vectors by text, falling back to a unit
// vector so any text embeds without setup.
type mockEmbedder struct {
	dim     int
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	v := make([]float32, m.dim)
	v[0] = 1
	return v, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dim }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockReranker scores passages with the provided function.
type mockReranker struct {
	score func(passage string) float64
	err   error
	calls int
}

func (m *mockReranker) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = m.score(p)
	}
	return out, nil
}

func (m *mockReranker) Close() error { return nil }

// mockGenerator records prompts and replies with a fixed answer.
type mockGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockGenerator) ModelName() string { return "mock-llm" }
func (m *mockGenerator) Close() error      { return nil }

// memDocStore is an in-memory DocumentStore.
type memDocStore struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]*domain.Document)}
}

func (s *memDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *memDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *memDocStore) ListByEntity(_ context.Context, entityID string) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Document
	for _, d := range s.docs {
		if d.EntityID == entityID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *memDocStore) SetStatus(_ context.Context, id string, status domain.IngestStatus, errorMessage string, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	doc.ChunkCount = chunkCount
	if status == domain.IngestIndexed || status == domain.IngestFailed {
		doc.ProcessedAt = time.Now()
	}
	return nil
}

// memSessionStore is an in-memory SessionStore.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	messages []domain.Message
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *memSessionStore) GetOrCreateSession(_ context.Context, sessionID, entityID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		cp := *existing
		return &cp, nil
	}
	sess := &domain.Session{ID: sessionID, EntityID: entityID, StartedAt: time.Now()}
	s.sessions[sessionID] = sess
	cp := *sess
	return &cp, nil
}

func (s *memSessionStore) SaveMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("m%d", len(s.messages)+1)
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memSessionStore) ListMessages(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeExtractor returns canned passages for any file.
type fakeExtractor struct {
	passages []domain.Passage
	err      error
	types    []string
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) ([]domain.Passage, error) {
	return f.passages, f.err
}

func (f *fakeExtractor) FileTypes() []string {
	if len(f.types) == 0 {
		return []string{"pdf"}
	}
	return f.types
}

// fakeRegistry serves one extractor for its declared types.
type fakeRegistry struct {
	extractor driven.TextExtractor
}

func (r *fakeRegistry) ForType(fileType string) (driven.TextExtractor, error) {
	for _, t := range r.extractor.FileTypes() {
		if t == fileType {
			return r.extractor, nil
		}
	}
	return nil, domain.ErrUnsupportedFileType
}

// passthroughChunker emits each passage unchanged.
type passthroughChunker struct{}

func (passthroughChunker) Name() string { return "passthrough" }

func (passthroughChunker) Chunk(_ context.Context, p domain.Passage) ([]domain.Passage, error) {
	return []domain.Passage{p}, nil
}
