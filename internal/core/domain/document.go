package domain

import "time"

// IngestStatus tracks a document through the indexing lifecycle.
type IngestStatus string

// Document ingestion states.
const (
	IngestPending    IngestStatus = "pending"
	IngestProcessing IngestStatus = "processing"
	IngestIndexed    IngestStatus = "indexed"
	IngestFailed     IngestStatus = "failed"
)

// Document is an uploaded file belonging to one patient. The raw bytes
// live on disk; this record tracks identity and ingestion outcome.
type Document struct {
	// ID is the unique document identifier.
	ID string

	// EntityID is the patient the document belongs to.
	EntityID string

	// FileName is the original upload name.
	FileName string

	// FilePath is the location of the raw file on disk.
	FilePath string

	// FileType is the lowercase extension (pdf, png, jpg, ...).
	FileType string

	// Status is the current ingestion state.
	Status IngestStatus

	// ErrorMessage holds the human-readable failure reason when Status
	// is IngestFailed.
	ErrorMessage string

	// ChunkCount is the number of chunks produced by the last successful
	// ingestion.
	ChunkCount int

	// CreatedAt is when the document record was created.
	CreatedAt time.Time

	// ProcessedAt is when ingestion last finished, zero if never.
	ProcessedAt time.Time
}
