package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
)

var _ driven.TextExtractor = (*PDFExtractor)(nil)

// tableGap is the horizontal distance, in PDF points, beyond which two
// text runs on the same row are treated as separate table cells.
const tableGap = 24.0

// PDFExtractor pulls text, tables and embedded images out of PDF
// files. Every page is extracted independently: a page that fails to
// parse is logged and skipped, never failing the whole document.
type PDFExtractor struct {
	ocr driven.OCRService
}

// NewPDFExtractor creates a PDF extractor. ocr may be nil, in which
// case embedded images are skipped.
func NewPDFExtractor(ocr driven.OCRService) *PDFExtractor {
	return &PDFExtractor{ocr: ocr}
}

// FileTypes returns the extensions this extractor handles.
func (e *PDFExtractor) FileTypes() []string {
	return []string{"pdf"}
}

// Extract reads the file and returns its passages in document order.
func (e *PDFExtractor) Extract(ctx context.Context, filePath string) ([]domain.Passage, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, &domain.ExtractionError{Stage: "open", Err: err}
	}
	defer f.Close()

	var passages []domain.Passage
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		passages = append(passages, e.extractPage(ctx, page, pageNum, filePath)...)
	}

	return passages, nil
}

func (e *PDFExtractor) extractPage(ctx context.Context, page pdf.Page, pageNum int, filePath string) []domain.Passage {
	var passages []domain.Passage

	text, err := page.GetPlainText(nil)
	if err != nil {
		logger.Warn("page %d of %s: text extraction failed: %v", pageNum, filePath, err)
	} else if t := strings.TrimSpace(text); t != "" {
		passages = append(passages, domain.Passage{SourceType: domain.SourceTypeText, Page: pageNum, Text: t})
	}

	if table := e.extractTable(page, pageNum, filePath); table != "" {
		passages = append(passages, domain.Passage{SourceType: domain.SourceTypeTable, Page: pageNum, Text: table})
	}

	if e.ocr != nil {
		passages = append(passages, e.extractImages(ctx, page, pageNum, filePath)...)
	}

	return passages
}

// extractTable reconstructs tabular content from row-aligned text runs.
// Rows whose runs are separated by wide horizontal gaps are treated as
// cell boundaries; a page yields a table only when at least two rows
// have two or more cells.
func (e *PDFExtractor) extractTable(page pdf.Page, pageNum int, filePath string) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		logger.Warn("page %d of %s: row extraction failed: %v", pageNum, filePath, err)
		return ""
	}

	var lines []string
	multiCell := 0
	for _, row := range rows {
		cells := splitCells(row.Content)
		if len(cells) >= 2 {
			multiCell++
		}
		lines = append(lines, strings.Join(cells, " | "))
	}

	if multiCell < 2 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// splitCells groups a row's text runs into cells on horizontal gaps.
func splitCells(runs pdf.TextHorizontal) []string {
	var cells []string
	var cell strings.Builder
	prevEnd := -1.0

	for _, t := range runs {
		if prevEnd >= 0 && t.X-prevEnd > tableGap && cell.Len() > 0 {
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		}
		cell.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	if s := strings.TrimSpace(cell.String()); s != "" {
		cells = append(cells, s)
	}
	return cells
}

// extractImages OCRs the page's embedded JPEG XObjects. Other image
// encodings are skipped.
func (e *PDFExtractor) extractImages(ctx context.Context, page pdf.Page, pageNum int, filePath string) []domain.Passage {
	xobjects := page.V.Key("Resources").Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}

	var passages []domain.Passage
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" || !isJPEG(obj) {
			continue
		}

		text, err := e.ocrImageObject(ctx, obj)
		if err != nil {
			logger.Warn("page %d of %s: OCR on image %s failed: %v", pageNum, filePath, name, err)
			continue
		}
		if text != "" {
			passages = append(passages, domain.Passage{SourceType: domain.SourceTypeImageOCR, Page: pageNum, Text: text})
		}
	}
	return passages
}

// isJPEG reports whether the image stream is DCT-encoded, i.e. raw
// JPEG bytes once the outer filters are stripped.
func isJPEG(obj pdf.Value) bool {
	filter := obj.Key("Filter")
	switch filter.Kind() {
	case pdf.Name:
		return filter.Name() == "DCTDecode"
	case pdf.Array:
		for i := 0; i < filter.Len(); i++ {
			if filter.Index(i).Name() == "DCTDecode" {
				return true
			}
		}
	}
	return false
}

func (e *PDFExtractor) ocrImageObject(ctx context.Context, obj pdf.Value) (string, error) {
	tmp, err := os.CreateTemp("", "page-image-*.jpg")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, obj.Reader()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing temp image: %w", err)
	}

	return e.ocr.Recognize(ctx, tmp.Name())
}

// ImageExtractor handles standalone image uploads by running them
// through OCR as a single passage.
type ImageExtractor struct {
	ocr driven.OCRService
}

var _ driven.TextExtractor = (*ImageExtractor)(nil)

// NewImageExtractor creates an image extractor over the OCR service.
func NewImageExtractor(ocr driven.OCRService) *ImageExtractor {
	return &ImageExtractor{ocr: ocr}
}

// FileTypes returns the extensions this extractor handles.
func (e *ImageExtractor) FileTypes() []string {
	return []string{"png", "jpg", "jpeg", "tiff", "bmp"}
}

// Extract OCRs the image and returns at most one passage.
func (e *ImageExtractor) Extract(ctx context.Context, filePath string) ([]domain.Passage, error) {
	text, err := e.ocr.Recognize(ctx, filePath)
	if err != nil {
		return nil, &domain.ExtractionError{Stage: "ocr", Err: fmt.Errorf("%s: %w", filepath.Base(filePath), err)}
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []domain.Passage{{SourceType: domain.SourceTypeImageOCR, Page: 1, Text: strings.TrimSpace(text)}}, nil
}
