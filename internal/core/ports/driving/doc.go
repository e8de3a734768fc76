// Package driving provides interfaces for application entry points
// (primary/inbound ports): ingestion, retrieval, answering and corpus
// administration, as consumed by the HTTP API and the CLI.
package driving
