// Package domain defines the core types of the retrieval engine: chunks
// and their typed metadata, documents and their ingestion lifecycle,
// conversation sessions, retrieval options and results, and the error
// taxonomy shared by all adapters.
//
// The package has no dependencies outside the standard library so that
// every other layer can import it freely.
package domain
