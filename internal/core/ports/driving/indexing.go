package driving

import "context"

// IngestRequest is the ingestion trigger consumed from the external
// task system.
type IngestRequest struct {
	// DocumentID identifies the document record.
	DocumentID string `json:"document_id"`

	// EntityID is the patient owning the corpus.
	EntityID string `json:"entity_id"`

	// FilePath is the raw file location on disk.
	FilePath string `json:"file_path"`

	// FileType is the lowercase extension (pdf, png, ...).
	FileType string `json:"file_type"`

	// FileName is the original upload name, optional.
	FileName string `json:"file_name,omitempty"`
}

// IngestResult reports the outcome of one document's ingestion. The
// caller persists it onto the document record.
type IngestResult struct {
	// DocumentID echoes the request.
	DocumentID string `json:"document_id"`

	// Success is true when the document was fully indexed.
	Success bool `json:"success"`

	// ErrorMessage is the human-readable failure reason, empty on
	// success.
	ErrorMessage string `json:"error_message,omitempty"`

	// ChunkCount is the number of chunks in the corpus for this
	// document after ingestion.
	ChunkCount int `json:"chunk_count"`
}

// IndexingService ingests documents into per-entity corpora.
type IndexingService interface {
	// Ingest processes one document end to end: extract, chunk, embed,
	// persist, upsert the sparse index, and record the document status.
	// Ingestion errors are reported in the result, not returned, so a
	// batch caller can keep going; the error return is reserved for
	// context cancellation.
	Ingest(ctx context.Context, req IngestRequest) (IngestResult, error)

	// IngestBatch processes several documents, isolating failures per
	// document.
	IngestBatch(ctx context.Context, reqs []IngestRequest) ([]IngestResult, error)
}
