package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
)

// ErrDenied is returned when an access decision blocks an operation.
var ErrDenied = errors.New("access denied")

// GuardedStore wraps a document store so every operation is evaluated
// before it touches persistence. The evaluation sees the stored document
// as Existing and the caller's document as Proposed, which is exactly the
// pair the rule conditions are written against.
type GuardedStore struct {
	store  document.Store
	engine access.Engine
}

// NewGuardedStore wraps store behind engine.
func NewGuardedStore(store document.Store, engine access.Engine) *GuardedStore {
	return &GuardedStore{store: store, engine: engine}
}

// Get fetches a document on behalf of subject.
// A denied read returns ErrDenied even when the document does not exist,
// so denial never doubles as an existence oracle.
func (g *GuardedStore) Get(ctx context.Context, collection, id, subject string) (document.Document, error) {
	existing, err := g.store.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, document.ErrNotFound) {
		return nil, fmt.Errorf("guarded get: %w", err)
	}

	decision := g.engine.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationRead,
		Collection: collection,
		DocumentID: id,
		Subject:    subject,
		Existing:   existing,
	})
	if !decision.Allowed {
		return nil, ErrDenied
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// Create writes a document where none exists on behalf of subject.
func (g *GuardedStore) Create(ctx context.Context, collection, id, subject string, doc document.Document) error {
	_, err := g.store.Get(ctx, collection, id)
	if err == nil {
		return fmt.Errorf("guarded create: document %s/%s already exists", collection, id)
	}
	if !errors.Is(err, document.ErrNotFound) {
		return fmt.Errorf("guarded create: %w", err)
	}

	decision := g.engine.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationCreate,
		Collection: collection,
		DocumentID: id,
		Subject:    subject,
		Proposed:   doc,
	})
	if !decision.Allowed {
		return ErrDenied
	}
	return g.store.Put(ctx, collection, id, doc)
}

// Update replaces an existing document on behalf of subject.
func (g *GuardedStore) Update(ctx context.Context, collection, id, subject string, doc document.Document) error {
	existing, err := g.store.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, document.ErrNotFound) {
		return fmt.Errorf("guarded update: %w", err)
	}

	decision := g.engine.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationUpdate,
		Collection: collection,
		DocumentID: id,
		Subject:    subject,
		Existing:   existing,
		Proposed:   doc,
	})
	if !decision.Allowed {
		return ErrDenied
	}
	if err != nil {
		return err
	}
	return g.store.Put(ctx, collection, id, doc)
}

// Delete removes a document on behalf of subject.
func (g *GuardedStore) Delete(ctx context.Context, collection, id, subject string) error {
	existing, err := g.store.Get(ctx, collection, id)
	if err != nil && !errors.Is(err, document.ErrNotFound) {
		return fmt.Errorf("guarded delete: %w", err)
	}

	decision := g.engine.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationDelete,
		Collection: collection,
		DocumentID: id,
		Subject:    subject,
		Existing:   existing,
	})
	if !decision.Allowed {
		return ErrDenied
	}
	if err != nil {
		return err
	}
	return g.store.Delete(ctx, collection, id)
}
