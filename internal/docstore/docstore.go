// Package docstore provides a document store with Firestore-like semantics:
// collections of JSON documents with query/filter/order/limit, merge writes,
// and dotted-path partial updates. Two interchangeable backends exist
// (SQLite and JSON-file); both evaluate queries through the same in-process
// matcher so their behavior is identical from the caller's point of view.
package docstore

import (
	"context"
	"strings"
)

// Document is a JSON-shaped document. Nested objects are map[string]any,
// numbers are float64, as produced by encoding/json.
type Document = map[string]any

// Snapshot pairs a document with its ID.
type Snapshot struct {
	ID   string
	Data Document
}

// Filter operators.
const (
	OpEq            = "=="
	OpNeq           = "!="
	OpLt            = "<"
	OpLte           = "<="
	OpGt            = ">"
	OpGte           = ">="
	OpArrayContains = "array-contains"
)

// Filter is a single field comparison applied to a query.
type Filter struct {
	Field string
	Op    string
	Value any
}

// OrderBy sorts query results by a (possibly dotted) field.
type OrderBy struct {
	Field string
	Desc  bool
}

// Store is the persistence interface required by the application.
// Get returns (nil, nil) when the document does not exist.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, limit int) ([]Snapshot, error)
	Add(ctx context.Context, collection string, data Document) (string, error)
	Set(ctx context.Context, collection, id string, data Document, merge bool) error
	Update(ctx context.Context, collection, id string, ops []PatchOp) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// Sub builds the collection path for a subcollection scoped to a parent
// document, e.g. Sub("projects", "p1", "chats") -> "projects/p1/chats".
func Sub(parent, parentID, name string) string {
	return parent + "/" + parentID + "/" + name
}

// validCollection rejects empty path segments so "a//b" cannot silently
// alias "a/b".
func validCollection(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}
