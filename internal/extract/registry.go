// Package extract turns uploaded files into tagged passages ready for
// chunking.
package extract

import (
	"fmt"
	"strings"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// Registry maps lowercase file extensions to their extractor.
type Registry struct {
	byType map[string]driven.TextExtractor
}

var _ driven.ExtractorRegistry = (*Registry)(nil)

// NewRegistry creates a registry over the given extractors.
func NewRegistry(extractors ...driven.TextExtractor) *Registry {
	r := &Registry{byType: make(map[string]driven.TextExtractor)}
	for _, e := range extractors {
		for _, t := range e.FileTypes() {
			r.byType[strings.ToLower(t)] = e
		}
	}
	return r
}

// ForType returns the extractor registered for the file extension.
func (r *Registry) ForType(fileType string) (driven.TextExtractor, error) {
	e, ok := r.byType[strings.ToLower(strings.TrimPrefix(fileType, "."))]
	if !ok {
		return nil, fmt.Errorf("file type %q: %w", fileType, domain.ErrUnsupportedFileType)
	}
	return e, nil
}
