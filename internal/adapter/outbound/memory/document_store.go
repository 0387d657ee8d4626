// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"

	"github.com/parcelgate/parcelgate/internal/domain/document"
)

// DocumentStore implements document.Store with nested maps.
// Thread-safe for concurrent access. Used by tests, the check command, and
// dev mode; serve mode uses the sqlite store.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]document.Document
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]document.Document),
	}
}

// Get returns the document stored under collection/id.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, document.ErrNotFound
	}
	// Return a copy to prevent mutation.
	return doc.Clone(), nil
}

// Put creates or replaces the document stored under collection/id.
func (s *DocumentStore) Put(ctx context.Context, collection, id string, doc document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]document.Document)
		s.collections[collection] = coll
	}
	// Store a copy to prevent external mutation.
	coll[id] = doc.Clone()
	return nil
}

// Delete removes the document stored under collection/id.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if _, ok := coll[id]; !ok {
		return document.ErrNotFound
	}
	delete(coll, id)
	return nil
}

// List returns all documents in a collection, keyed by id.
func (s *DocumentStore) List(ctx context.Context, collection string) (map[string]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	out := make(map[string]document.Document, len(coll))
	for id, doc := range coll {
		out[id] = doc.Clone()
	}
	return out, nil
}

// Seed stores a document (for testing/seeding). Identical semantics to Put.
func (s *DocumentStore) Seed(collection, id string, doc document.Document) {
	_ = s.Put(context.Background(), collection, id, doc)
}

// Compile-time interface verification.
var _ document.Store = (*DocumentStore)(nil)
