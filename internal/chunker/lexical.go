// Package chunker splits extracted passages into bounded pieces ready
// for embedding.
package chunker

import (
	"context"
	"strings"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// Lexical chunking defaults, in words.
const (
	DefaultWindowWords  = 200
	DefaultOverlapWords = 50
)

// Lexical splits a passage into fixed-size word windows with overlap.
// It needs no model and is the fallback strategy.
type Lexical struct {
	window  int
	overlap int
}

var _ driven.Chunker = (*Lexical)(nil)

// LexicalOption configures a Lexical chunker.
type LexicalOption func(*Lexical)

// WithWindow sets the window size in words.
func WithWindow(words int) LexicalOption {
	return func(c *Lexical) {
		if words > 0 {
			c.window = words
		}
	}
}

// WithOverlap sets the overlap between windows in words.
func WithOverlap(words int) LexicalOption {
	return func(c *Lexical) {
		if words >= 0 {
			c.overlap = words
		}
	}
}

// NewLexical creates a lexical chunker with the given options.
func NewLexical(opts ...LexicalOption) *Lexical {
	c := &Lexical{window: DefaultWindowWords, overlap: DefaultOverlapWords}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.window {
		c.overlap = c.window / 4
	}
	return c
}

// Name identifies the chunking strategy in logs.
func (c *Lexical) Name() string {
	return "lexical"
}

// Chunk splits the passage, preserving its source type and page.
func (c *Lexical) Chunk(_ context.Context, p domain.Passage) ([]domain.Passage, error) {
	words := strings.Fields(p.Text)
	if len(words) == 0 {
		return nil, nil
	}

	step := c.window - c.overlap
	chunks := make([]domain.Passage, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := start + c.window
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, domain.Passage{
			SourceType: p.SourceType,
			Page:       p.Page,
			Text:       strings.Join(words[start:end], " "),
		})

		if end == len(words) {
			break
		}
	}

	return chunks, nil
}
