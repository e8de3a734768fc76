package chunker

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// Semantic chunking defaults.
const (
	DefaultSimilarityThreshold = 0.6
	DefaultMaxChunkWords       = 300
)

// Semantic groups consecutive sentences while they stay embedding-close
// to the running chunk, starting a new chunk when similarity drops
// below the threshold or the chunk hits its word cap.
type Semantic struct {
	embedder  driven.EmbeddingService
	threshold float64
	maxWords  int
}

var _ driven.Chunker = (*Semantic)(nil)

// SemanticOption configures a Semantic chunker.
type SemanticOption func(*Semantic)

// WithThreshold sets the cosine similarity below which a new chunk
// starts.
func WithThreshold(threshold float64) SemanticOption {
	return func(c *Semantic) {
		if threshold > 0 && threshold < 1 {
			c.threshold = threshold
		}
	}
}

// WithMaxWords caps the chunk length in words.
func WithMaxWords(words int) SemanticOption {
	return func(c *Semantic) {
		if words > 0 {
			c.maxWords = words
		}
	}
}

// NewSemantic creates a semantic chunker over the embedding service.
func NewSemantic(embedder driven.EmbeddingService, opts ...SemanticOption) *Semantic {
	c := &Semantic{
		embedder:  embedder,
		threshold: DefaultSimilarityThreshold,
		maxWords:  DefaultMaxChunkWords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the chunking strategy in logs.
func (c *Semantic) Name() string {
	return "semantic"
}

// Chunk splits the passage at sentence boundaries where the embedding
// similarity to the running chunk drops.
func (c *Semantic) Chunk(ctx context.Context, p domain.Passage) ([]domain.Passage, error) {
	sentences := splitSentences(p.Text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) == 1 {
		return []domain.Passage{{SourceType: p.SourceType, Page: p.Page, Text: sentences[0]}}, nil
	}

	vectors, err := c.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d sentences", len(vectors), len(sentences))
	}

	var chunks []domain.Passage
	current := []string{sentences[0]}
	centroid := append([]float32(nil), vectors[0]...)
	words := wordCount(sentences[0])

	flush := func() {
		chunks = append(chunks, domain.Passage{
			SourceType: p.SourceType,
			Page:       p.Page,
			Text:       strings.Join(current, " "),
		})
	}

	for i := 1; i < len(sentences); i++ {
		w := wordCount(sentences[i])
		if cosine(centroid, vectors[i]) < c.threshold || words+w > c.maxWords {
			flush()
			current = []string{sentences[i]}
			centroid = append([]float32(nil), vectors[i]...)
			words = w
			continue
		}

		current = append(current, sentences[i])
		addInto(centroid, vectors[i])
		words += w
	}
	flush()

	return chunks, nil
}

// splitSentences breaks text on sentence punctuation and blank lines.
func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder

	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			sentences = append(sentences, s)
		}
		sb.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		sb.WriteRune(r)
		switch r {
		case '.', '!', '?':
			// Keep decimal points and numbered headings together.
			if i+1 < len(runes) && !isSpaceRune(runes[i+1]) {
				continue
			}
			flush()
		case '\n':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// addInto accumulates v into acc element-wise.
func addInto(acc, v []float32) {
	for i := range acc {
		if i < len(v) {
			acc[i] += v[i]
		}
	}
}

// cosine returns the cosine similarity of a and b.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
