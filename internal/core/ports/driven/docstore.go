package driven

import (
	"context"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

// DocumentStore persists document records and their ingestion status.
type DocumentStore interface {
	// SaveDocument stores or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by id, or domain.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListByEntity returns all documents belonging to an entity.
	ListByEntity(ctx context.Context, entityID string) ([]domain.Document, error)

	// SetStatus updates the ingestion status, error message and chunk
	// count of a document.
	SetStatus(ctx context.Context, id string, status domain.IngestStatus, errorMessage string, chunkCount int) error
}

// SessionStore persists conversation sessions and their messages.
type SessionStore interface {
	// GetOrCreateSession returns the session with the given id, creating
	// it for the entity if absent.
	GetOrCreateSession(ctx context.Context, sessionID, entityID string) (*domain.Session, error)

	// SaveMessage records one question/answer exchange.
	SaveMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns a session's messages oldest first, capped at
	// limit when limit > 0.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
}
