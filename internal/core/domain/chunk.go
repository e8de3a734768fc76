package domain

// SourceType identifies the kind of content a passage was extracted from.
type SourceType string

// Source types produced by the extractors.
const (
	// SourceTypeText is a plain text region of a document page.
	SourceTypeText SourceType = "text"

	// SourceTypeTable is a detected table rendered to a textual form.
	SourceTypeTable SourceType = "table"

	// SourceTypeImageOCR is text recovered from an embedded image via OCR.
	SourceTypeImageOCR SourceType = "image_ocr"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeText, SourceTypeTable, SourceTypeImageOCR:
		return true
	}
	return false
}

// Passage is a span of extracted text tagged with its origin.
// Extractors produce passages; the chunker turns them into chunks.
type Passage struct {
	// SourceType is the kind of content the passage came from.
	SourceType SourceType

	// Page is the 1-based page the passage was extracted from.
	// Standalone images carry page 0.
	Page int

	// Text is the extracted content.
	Text string
}

// ChunkMeta is the typed metadata record stored alongside every vector.
// It replaces untyped key/value metadata: required fields are plain
// struct fields, and absence is an explicit zero value rather than a
// missing map key.
type ChunkMeta struct {
	// ID is unique within one corpus. Synthesized deterministically from
	// (document, source type, page, ordinal) so re-ingestion upserts.
	ID string `json:"id"`

	// DocumentID is the document the chunk was extracted from.
	DocumentID string `json:"document_id"`

	// EntityID is the patient owning the corpus.
	EntityID string `json:"entity_id"`

	// SourceType tags the content origin; defaults to text when absent.
	SourceType SourceType `json:"source_type"`

	// Page is the page reference carried from extraction.
	Page int `json:"page"`

	// Text is the raw chunk text, quoted verbatim into grounding prompts.
	Text string `json:"text"`

	// FileName is the original upload name, for user-facing citations.
	FileName string `json:"file_name,omitempty"`

	// EmbeddingModel tags which model produced the stored vector.
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// Chunk pairs the metadata record with its L2-normalized embedding.
type Chunk struct {
	Meta      ChunkMeta
	Embedding []float32
}
