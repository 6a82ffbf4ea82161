package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists documents as JSON rows keyed by (collection, id).
// Filtering, ordering, and limits run through the shared in-process matcher
// so results are identical to the file backend.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers, which sqlite requires anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "docstore.sqlite").Logger(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	s.logger.Info().Str("path", dbPath).Msg("document store initialized")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`)
	return err
}

// Get returns a document by ID, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return decodeDoc(raw)
}

// Query returns all documents in a collection matching the filters,
// ordered and limited.
func (s *SQLiteStore) Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, limit int) ([]Snapshot, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		if matchDoc(doc, filters) {
			snaps = append(snaps, Snapshot{ID: id, Data: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortAndLimit(snaps, order, limit), nil
}

// Add inserts a document with a generated ID.
func (s *SQLiteStore) Add(ctx context.Context, collection string, data Document) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Set writes a document. With merge, existing fields not present in data
// are preserved (shallow merge plus dotted keys resolved as paths).
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data Document, merge bool) error {
	if !validCollection(collection) {
		return fmt.Errorf("invalid collection path %q", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := data
	if merge {
		existing, err := s.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		doc = mergeDocs(existing, data)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Update applies patch ops to an existing document as a read-modify-write.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, ops []PatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	patched, err := ApplyPatch(existing, ops)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(patched)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(raw), time.Now().UnixMilli(), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeDoc(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// mergeDocs overlays update onto base. Dotted keys in update are treated as
// field paths, matching the merge semantics of the emulated store.
func mergeDocs(base, update Document) Document {
	out := deepCopy(base)
	if out == nil {
		out = Document{}
	}
	for k, v := range update {
		setPath(out, k, copyValue(v))
	}
	return out
}
