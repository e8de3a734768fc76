package driven

import (
	"context"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

// TextExtractor converts a raw document file into tagged passages.
// Each extraction sub-step (a page, a table, an embedded image) is
// independently fault-tolerant: implementations skip and log failing
// parts and keep extracting.
type TextExtractor interface {
	// Extract reads the file and returns its passages in document order.
	Extract(ctx context.Context, filePath string) ([]domain.Passage, error)

	// FileTypes returns the lowercase extensions this extractor handles.
	FileTypes() []string
}

// ExtractorRegistry resolves the extractor for a file type.
type ExtractorRegistry interface {
	// ForType returns the extractor registered for the lowercase file
	// extension, or domain.ErrUnsupportedFileType.
	ForType(fileType string) (TextExtractor, error)
}

// OCRService recovers text from an image. Implementations are
// language-tuned (the corpora are largely French).
type OCRService interface {
	// Recognize runs OCR over the image file and returns the text.
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Chunker splits a passage into bounded, embeddable passages. The
// fixed-window chunker needs nothing else; the semantic chunker embeds
// sentences as it goes.
type Chunker interface {
	// Name identifies the chunking strategy in logs.
	Name() string

	// Chunk splits the passage, preserving its source type and page.
	Chunk(ctx context.Context, p domain.Passage) ([]domain.Passage, error)
}
