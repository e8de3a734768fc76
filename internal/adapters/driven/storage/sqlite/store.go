package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
)

// Store is the SQLite-backed metadata store. It serves the document
// and session store interfaces through wrapper types over one shared
// connection.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the metadata database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, &domain.ConfigurationError{Component: "storage",
			Err: errors.New("data directory is required")}
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SessionStore returns a SessionStore interface backed by this store.
func (s *Store) SessionStore() driven.SessionStore {
	return &sessionStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document record.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" || doc.EntityID == "" {
		return domain.ErrInvalidInput
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = domain.IngestPending
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, entity_id, file_name, file_path, file_type, status, error_message, chunk_count, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity_id = excluded.entity_id,
			file_name = excluded.file_name,
			file_path = excluded.file_path,
			file_type = excluded.file_type,
			status = excluded.status,
			error_message = excluded.error_message,
			chunk_count = excluded.chunk_count,
			processed_at = excluded.processed_at
	`, doc.ID, doc.EntityID, doc.FileName, doc.FilePath, doc.FileType,
		string(doc.Status), doc.ErrorMessage, doc.ChunkCount,
		doc.CreatedAt, nullTime(doc.ProcessedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, entity_id, file_name, file_path, file_type, status, error_message, chunk_count, created_at, processed_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListByEntity returns all documents belonging to an entity, newest first.
func (s *documentStore) ListByEntity(ctx context.Context, entityID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, entity_id, file_name, file_path, file_type, status, error_message, chunk_count, created_at, processed_at
		FROM documents WHERE entity_id = ?
		ORDER BY created_at DESC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// SetStatus updates the ingestion status of a document. Terminal states
// also stamp processed_at.
func (s *documentStore) SetStatus(ctx context.Context, id string, status domain.IngestStatus, errorMessage string, chunkCount int) error {
	var processedAt any
	if status == domain.IngestIndexed || status == domain.IngestFailed {
		processedAt = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_message = ?, chunk_count = ?, processed_at = COALESCE(?, processed_at)
		WHERE id = ?
	`, string(status), errorMessage, chunkCount, processedAt, id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanDocument scans one document row via the given Scan function.
func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var processedAt sql.NullTime

	if err := scan(&doc.ID, &doc.EntityID, &doc.FileName, &doc.FilePath, &doc.FileType,
		&status, &doc.ErrorMessage, &doc.ChunkCount, &doc.CreatedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.IngestStatus(status)
	if processedAt.Valid {
		doc.ProcessedAt = processedAt.Time
	}

	return &doc, nil
}

// ==================== Session Store ====================

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// GetOrCreateSession returns the session with the given id, creating it
// for the entity if absent.
func (s *sessionStore) GetOrCreateSession(ctx context.Context, sessionID, entityID string) (*domain.Session, error) {
	if sessionID == "" || entityID == "" {
		return nil, domain.ErrInvalidInput
	}

	session := &domain.Session{ID: sessionID, EntityID: entityID, StartedAt: time.Now().UTC()}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, entity_id, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, session.ID, session.EntityID, session.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, entity_id, started_at FROM sessions WHERE id = ?", sessionID)
	if err := row.Scan(&session.ID, &session.EntityID, &session.StartedAt); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	return session, nil
}

// SaveMessage records one question/answer exchange.
func (s *sessionStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if msg.SessionID == "" {
		return domain.ErrInvalidInput
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, user_message, answer, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.UserMessage, msg.Answer, msg.LatencyMS, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages oldest first.
func (s *sessionStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	q := `
		SELECT id, session_id, user_message, answer, latency_ms, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserMessage, &m.Answer, &m.LatencyMS, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return msgs, nil
}

// nullTime maps a zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
