package domain

import "time"

// Session is one conversation between a patient and the assistant,
// keyed by the session id the messaging layer supplies.
type Session struct {
	// ID is the external session identifier (e.g. a WhatsApp thread key).
	ID string

	// EntityID is the patient holding the conversation.
	EntityID string

	// StartedAt is when the first message arrived.
	StartedAt time.Time
}

// Message records one question/answer exchange within a session.
type Message struct {
	// ID is the unique message identifier.
	ID string

	// SessionID links to the owning Session.
	SessionID string

	// UserMessage is the patient's question.
	UserMessage string

	// Answer is the generated reply, empty when generation produced
	// no usable content.
	Answer string

	// LatencyMS is the end-to-end answer latency in milliseconds.
	LatencyMS int64

	// CreatedAt is when the exchange completed.
	CreatedAt time.Time
}
