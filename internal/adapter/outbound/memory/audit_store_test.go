package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/parcelgate/parcelgate/internal/domain/audit"
)

func TestAuditStore_RecentNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewAuditStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Append(ctx, audit.Record{ID: fmt.Sprintf("r%d", i)})
		if err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	recent := store.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(recent))
	}
	if recent[0].ID != "r2" || recent[1].ID != "r1" {
		t.Errorf("Recent(2) = [%s %s], want [r2 r1]", recent[0].ID, recent[1].ID)
	}
}

func TestAuditStore_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	store := NewAuditStore(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, audit.Record{ID: fmt.Sprintf("r%d", i)})
	}

	if store.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", store.Size())
	}
	recent := store.Recent(10)
	if recent[0].ID != "r4" || recent[1].ID != "r3" {
		t.Errorf("Recent() = [%s %s], want [r4 r3]", recent[0].ID, recent[1].ID)
	}
}

func TestAuditStore_RecentOnEmpty(t *testing.T) {
	t.Parallel()

	store := NewAuditStore()
	if got := store.Recent(5); got != nil {
		t.Errorf("Recent() on empty store = %v, want nil", got)
	}
}
