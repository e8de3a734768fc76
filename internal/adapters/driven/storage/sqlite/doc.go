// Package sqlite provides the SQLite-backed metadata store for
// documents, sessions and messages, with embedded schema migrations.
package sqlite
