// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding and generation models, the
// per-corpus vector store and sparse index, text extraction, OCR, and
// metadata persistence.
package driven
