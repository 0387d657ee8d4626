package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parcelgate/parcelgate/internal/adapter/outbound/memory"
	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
)

// newGuardedFixture builds a guarded store over a fresh memory store,
// with the decision pipeline resolving roles from the given profiles.
func newGuardedFixture(t *testing.T, profiles map[string]document.Document) (*GuardedStore, *memory.DocumentStore) {
	t.Helper()

	svc, _ := newTestPipeline(t, profiles, nil)

	store := memory.NewDocumentStore()
	for id, doc := range profiles {
		store.Seed(access.CollectionUsers, id, doc)
	}
	return NewGuardedStore(store, svc), store
}

func TestGuardedStore_CreateThenGet(t *testing.T) {
	guarded, _ := newGuardedFixture(t, map[string]document.Document{
		"agent-1": {"role": "agent"},
	})
	ctx := context.Background()

	prop := document.Document{"ownerId": "agent-1", "title": "Lakeside cottage"}
	if err := guarded.Create(ctx, access.CollectionProperties, "prop-1", "agent-1", prop); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Property reads are public.
	got, err := guarded.Get(ctx, access.CollectionProperties, "prop-1", "")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.String("title") != "Lakeside cottage" {
		t.Errorf("Get() returned %+v", got)
	}
}

func TestGuardedStore_CreateDeniedLeavesStoreUntouched(t *testing.T) {
	guarded, store := newGuardedFixture(t, nil)
	ctx := context.Background()

	// Anonymous property creation is denied.
	err := guarded.Create(ctx, access.CollectionProperties, "prop-1", "", document.Document{"ownerId": "x"})
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("Create() error = %v, want ErrDenied", err)
	}

	if _, err := store.Get(ctx, access.CollectionProperties, "prop-1"); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("denied create reached the store: %v", err)
	}
}

func TestGuardedStore_UpdateOwnerOnly(t *testing.T) {
	guarded, store := newGuardedFixture(t, map[string]document.Document{
		"agent-1": {"role": "agent"},
		"user-1":  {"role": "user"},
	})
	ctx := context.Background()

	store.Seed(access.CollectionProperties, "prop-1", document.Document{
		"ownerId": "agent-1",
		"title":   "Old title",
	})

	update := document.Document{"ownerId": "agent-1", "title": "New title"}

	err := guarded.Update(ctx, access.CollectionProperties, "prop-1", "user-1", update)
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("non-owner Update() error = %v, want ErrDenied", err)
	}

	if err := guarded.Update(ctx, access.CollectionProperties, "prop-1", "agent-1", update); err != nil {
		t.Fatalf("owner Update() error: %v", err)
	}

	got, err := store.Get(ctx, access.CollectionProperties, "prop-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.String("title") != "New title" {
		t.Errorf("update did not persist: %+v", got)
	}
}

func TestGuardedStore_ViewIncrementByStranger(t *testing.T) {
	guarded, store := newGuardedFixture(t, map[string]document.Document{
		"user-1": {"role": "user"},
	})
	ctx := context.Background()

	store.Seed(access.CollectionProperties, "prop-1", document.Document{
		"ownerId": "agent-1",
		"views":   int64(3),
	})

	// Anyone may bump views by exactly one and change nothing else.
	if err := guarded.Update(ctx, access.CollectionProperties, "prop-1", "user-1", document.Document{
		"ownerId": "agent-1",
		"views":   int64(4),
	}); err != nil {
		t.Fatalf("view increment Update() error: %v", err)
	}

	err := guarded.Update(ctx, access.CollectionProperties, "prop-1", "user-1", document.Document{
		"ownerId": "agent-1",
		"views":   int64(6),
	})
	if !errors.Is(err, ErrDenied) {
		t.Errorf("view jump Update() error = %v, want ErrDenied", err)
	}
}

func TestGuardedStore_DeleteOwnerOnly(t *testing.T) {
	guarded, store := newGuardedFixture(t, map[string]document.Document{
		"agent-1": {"role": "agent"},
	})
	ctx := context.Background()

	store.Seed(access.CollectionProperties, "prop-1", document.Document{"ownerId": "agent-1"})

	err := guarded.Delete(ctx, access.CollectionProperties, "prop-1", "stranger")
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("stranger Delete() error = %v, want ErrDenied", err)
	}

	if err := guarded.Delete(ctx, access.CollectionProperties, "prop-1", "agent-1"); err != nil {
		t.Fatalf("owner Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, access.CollectionProperties, "prop-1"); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("document still present after delete: %v", err)
	}
}

func TestGuardedStore_DeniedReadHidesExistence(t *testing.T) {
	guarded, _ := newGuardedFixture(t, nil)
	ctx := context.Background()

	// Anonymous users reads are denied whether or not the document exists.
	_, errMissing := guarded.Get(ctx, access.CollectionUsers, "nobody", "")
	if !errors.Is(errMissing, ErrDenied) {
		t.Errorf("Get(missing) error = %v, want ErrDenied", errMissing)
	}
}

func TestGuardedStore_GetMissingAllowed(t *testing.T) {
	guarded, _ := newGuardedFixture(t, map[string]document.Document{
		"user-1": {"role": "user"},
	})

	_, err := guarded.Get(context.Background(), access.CollectionProperties, "ghost", "user-1")
	if !errors.Is(err, document.ErrNotFound) {
		t.Errorf("Get(missing, allowed) error = %v, want ErrNotFound", err)
	}
}
