package document

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Reader provides read-only access to stored documents.
// The principal resolver needs nothing more than this.
type Reader interface {
	// Get returns the document stored under collection/id.
	// Returns ErrNotFound if no document exists at that path.
	Get(ctx context.Context, collection, id string) (Document, error)
}

// Store persists and retrieves documents.
// Interface owned by the domain; adapters implement it.
type Store interface {
	Reader

	// Put creates or replaces the document stored under collection/id.
	Put(ctx context.Context, collection, id string, doc Document) error

	// Delete removes the document stored under collection/id.
	// Returns ErrNotFound if no document exists at that path.
	Delete(ctx context.Context, collection, id string) error

	// List returns all documents in a collection, keyed by id.
	List(ctx context.Context, collection string) (map[string]Document, error)
}
