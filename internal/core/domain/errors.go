package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotLoaded indicates a store operation before Open.
	ErrNotLoaded = errors.New("vector store not loaded")

	// ErrCorpusNotReady indicates the entity has no indexed corpus yet.
	// The query surface maps this to a "not found" response.
	ErrCorpusNotReady = errors.New("corpus not ready")

	// ErrUnsupportedFileType indicates no extractor handles the file type.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrGenerationUnavailable indicates the generation service is not
	// configured. Answering is disabled; retrieval still works.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

// StorageError wraps failures against persisted corpus files: missing or
// corrupt stores, dimension mismatches, unwritable directories. Some are
// recoverable via index rebuild; callers decide using the wrapped cause.
type StorageError struct {
	// Op is the failing operation (open, append, rebuild, ...).
	Op string

	// Path is the file or directory involved.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConfigurationError indicates a required backend could not be set up at
// configuration time (as opposed to failing mid-call, which degrades).
type ConfigurationError struct {
	// Component names the backend (sparse index, embedder, ...).
	Component string

	// Err is the underlying cause.
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ExtractionError is a per-passage extraction failure. It is logged and
// skipped; a document keeps ingesting around it.
type ExtractionError struct {
	// Stage is the extraction sub-step (page text, table, image ocr).
	Stage string

	// Page is the page being extracted, 1-based, 0 when unknown.
	Page int

	// Err is the underlying cause.
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s page %d: %v", e.Stage, e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError is fatal to the retrieval or ingestion call it occurs
// in: without a query vector there is no dense signal, and a corpus is
// never persisted with missing embeddings.
type EmbeddingError struct {
	// Err is the underlying cause.
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
