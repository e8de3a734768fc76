package driving

import "context"

// AnswerRequest is one question from the messaging layer.
type AnswerRequest struct {
	// EntityID is the patient asking.
	EntityID string `json:"entity_id"`

	// Query is the free-text question.
	Query string `json:"query"`

	// SessionID keys the conversation, supplied by the messaging layer.
	SessionID string `json:"session_id"`
}

// AnswerResponse is the generated reply.
type AnswerResponse struct {
	// Answer is the generated text, empty when the generation service
	// returned no usable content.
	Answer string `json:"answer"`

	// EntityID echoes the request.
	EntityID string `json:"entity_id"`

	// SessionID echoes the request.
	SessionID string `json:"session_id"`

	// LatencyMS is the end-to-end latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
}

// AnswerService retrieves grounding passages and delegates to the
// generation service.
type AnswerService interface {
	// Answer runs retrieval, builds the grounding prompt and calls the
	// generation backend. Returns domain.ErrCorpusNotReady when the
	// entity has no indexed corpus.
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error)
}
