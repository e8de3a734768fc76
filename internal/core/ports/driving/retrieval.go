package driving

import (
	"context"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

// RetrievalResponse carries ranked passages plus any documented
// fallbacks taken during the call.
type RetrievalResponse struct {
	// Results are the top-k passages, best first.
	Results []domain.RetrievalResult `json:"results"`

	// Degradations lists the non-fatal fallbacks taken, empty when the
	// call used every configured signal.
	Degradations []domain.Degradation `json:"degradations,omitempty"`
}

// RetrievalService answers free-text queries against one entity's
// corpus with fused dense+sparse ranking.
type RetrievalService interface {
	// Retrieve embeds the query and returns the fused top-k passages.
	// Embedding failure is fatal; sparse and rerank failures degrade.
	// Returns domain.ErrCorpusNotReady when the entity has no corpus.
	Retrieve(ctx context.Context, entityID, query string, opts domain.RetrievalOptions) (*RetrievalResponse, error)
}
