// Package ocr provides an OCR adapter shelling out to the tesseract
// binary.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

var _ driven.OCRService = (*Tesseract)(nil)

// DefaultLanguages covers the French-heavy document base with an
// English fallback.
const DefaultLanguages = "fra+eng"

// Tesseract runs the tesseract CLI over image files.
type Tesseract struct {
	binary    string
	languages string
}

// Option configures a Tesseract service.
type Option func(*Tesseract)

// WithBinary overrides the tesseract executable path.
func WithBinary(path string) Option {
	return func(t *Tesseract) { t.binary = path }
}

// WithLanguages sets the tesseract language pack list (e.g. "fra+eng").
func WithLanguages(langs string) Option {
	return func(t *Tesseract) { t.languages = langs }
}

// NewTesseract creates a new tesseract-backed OCR service.
func NewTesseract(opts ...Option) *Tesseract {
	t := &Tesseract{binary: "tesseract", languages: DefaultLanguages}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Available reports whether the tesseract binary can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// Recognize runs OCR over the image file and returns the text.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	// "-" sends the recognized text to stdout.
	cmd := exec.CommandContext(ctx, t.binary, imagePath, "-", "-l", t.languages)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract on %s: %w: %s", imagePath, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
