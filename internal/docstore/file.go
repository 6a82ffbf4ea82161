package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FileStore keeps documents in process memory, optionally persisting each
// collection to a JSON file under dir. With an empty dir it is a pure
// in-memory store, which tests use for isolation.
type FileStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]Document // collection -> id -> doc
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a file-backed store rooted at dir. Existing
// collection files are loaded eagerly.
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		data:   make(map[string]map[string]Document),
		dir:    dir,
		logger: logger.With().Str("component", "docstore.file").Logger(),
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		if err := s.loadAll(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewMemoryStore creates an in-memory store with no file persistence.
func NewMemoryStore(logger zerolog.Logger) *FileStore {
	s, _ := NewFileStore("", logger)
	return s
}

func (s *FileStore) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read store dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to read collection file %s: %w", e.Name(), err)
		}
		var col map[string]Document
		if err := json.Unmarshal(raw, &col); err != nil {
			return fmt.Errorf("failed to decode collection file %s: %w", e.Name(), err)
		}
		name := decodeCollectionName(strings.TrimSuffix(e.Name(), ".json"))
		s.data[name] = col
	}
	s.logger.Info().Int("collections", len(s.data)).Str("dir", s.dir).Msg("document store loaded")
	return nil
}

// flush persists one collection to disk. Best-effort: a failed write is
// logged, not surfaced, matching the emulation contract.
func (s *FileStore) flush(collection string) {
	if s.dir == "" {
		return
	}
	raw, err := json.MarshalIndent(s.data[collection], "", "  ")
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("failed to marshal collection")
		return
	}
	path := filepath.Join(s.dir, encodeCollectionName(collection)+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("failed to write collection file")
	}
}

// Get returns a document by ID, or (nil, nil) when absent.
func (s *FileStore) Get(_ context.Context, collection, id string) (Document, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, nil
	}
	return deepCopy(doc), nil
}

// Query returns matching documents, ordered and limited.
func (s *FileStore) Query(_ context.Context, collection string, filters []Filter, order *OrderBy, limit int) ([]Snapshot, error) {
	if !validCollection(collection) {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	// Stable base order before sortAndLimit, matching the sqlite backend's
	// ORDER BY id scan.
	sort.Strings(ids)
	var snaps []Snapshot
	for _, id := range ids {
		doc := s.data[collection][id]
		if matchDoc(doc, filters) {
			snaps = append(snaps, Snapshot{ID: id, Data: deepCopy(doc)})
		}
	}
	s.mu.RUnlock()
	return sortAndLimit(snaps, order, limit), nil
}

// Add inserts a document with a generated ID.
func (s *FileStore) Add(ctx context.Context, collection string, data Document) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Set writes a document, merging when requested.
func (s *FileStore) Set(_ context.Context, collection, id string, data Document, merge bool) error {
	if !validCollection(collection) {
		return fmt.Errorf("invalid collection path %q", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]Document)
	}
	doc := deepCopy(data)
	if merge {
		doc = mergeDocs(s.data[collection][id], data)
	}
	s.data[collection][id] = doc
	s.flush(collection)
	return nil
}

// Update applies patch ops to an existing document.
func (s *FileStore) Update(_ context.Context, collection, id string, ops []PatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[collection][id]
	if !ok {
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	patched, err := ApplyPatch(existing, ops)
	if err != nil {
		return err
	}
	s.data[collection][id] = patched
	s.flush(collection)
	return nil
}

// Delete removes a document. Deleting a missing document is a no-op.
func (s *FileStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	s.flush(collection)
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

// Reset drops all in-memory data. Test hook.
func (s *FileStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]map[string]Document)
}

// Collection paths contain '/', which cannot appear in file names.
func encodeCollectionName(name string) string {
	return strings.ReplaceAll(name, "/", "__")
}

func decodeCollectionName(name string) string {
	return strings.ReplaceAll(name, "__", "/")
}
