// Package services implements the core application logic: corpus
// management, hybrid retrieval, document ingestion and grounded answer
// generation. Services depend only on the port interfaces and know
// nothing about HTTP, SQLite or any concrete backend.
package services
