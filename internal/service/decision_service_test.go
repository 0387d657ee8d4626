package service

import (
	"context"
	"testing"
	"time"

	celeval "github.com/parcelgate/parcelgate/internal/adapter/outbound/cel"
	"github.com/parcelgate/parcelgate/internal/adapter/outbound/memory"
	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/audit"
	"github.com/parcelgate/parcelgate/internal/domain/document"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
	"github.com/parcelgate/parcelgate/internal/domain/rules"
	"github.com/parcelgate/parcelgate/internal/domain/upload"
)

// newTestPipeline builds a decision service over an in-memory directory
// with the given user profiles, plus the compiled overlay rules.
func newTestPipeline(t *testing.T, profiles map[string]document.Document, overlayRules []OverlayRule) (*DecisionService, *memory.AuditStore) {
	t.Helper()

	store := memory.NewDocumentStore()
	for id, doc := range profiles {
		store.Seed(access.CollectionUsers, id, doc)
	}

	resolver := principal.NewDirectoryResolver(store, discardLogger())

	ev, err := celeval.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}
	compiled, err := CompileOverlays(ev, overlayRules)
	if err != nil {
		t.Fatalf("CompileOverlays() error: %v", err)
	}

	trailStore := memory.NewAuditStore()
	trail := NewAuditService(trailStore, discardLogger(), WithBatchSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	trail.Start(ctx)
	t.Cleanup(func() {
		trail.Stop()
		cancel()
	})

	svc := NewDecisionService(
		rules.NewTable(resolver),
		upload.NewTable(resolver),
		resolver,
		ev,
		compiled,
		trail,
		discardLogger(),
	)
	return svc, trailStore
}

func TestDecisionService_BaseTableDecides(t *testing.T) {
	svc, _ := newTestPipeline(t, map[string]document.Document{
		"user-1": {"role": "user"},
	}, nil)

	ctx := context.Background()

	got := svc.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationRead,
		Collection: access.CollectionUsers,
		DocumentID: "user-2",
		Subject:    "user-1",
	})
	if !got.Allowed {
		t.Errorf("authenticated users read denied: %+v", got)
	}

	got = svc.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationRead,
		Collection: access.CollectionUsers,
		DocumentID: "user-2",
	})
	if got.Allowed {
		t.Errorf("anonymous users read allowed: %+v", got)
	}
}

func TestDecisionService_OverlayDeniesBeforeBaseTable(t *testing.T) {
	svc, _ := newTestPipeline(t, map[string]document.Document{
		"user-1": {"role": "user"},
	}, []OverlayRule{
		{Name: "freeze-properties", Condition: `collection == "properties" && operation != "read"`},
	})

	ctx := context.Background()

	// Property creation is normally open to any authenticated subject.
	got := svc.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationCreate,
		Collection: access.CollectionProperties,
		DocumentID: "prop-1",
		Subject:    "user-1",
		Proposed:   document.Document{"ownerId": "user-1"},
	})
	if got.Allowed {
		t.Fatalf("overlay did not block property create: %+v", got)
	}
	if got.Rule != "freeze-properties" {
		t.Errorf("deny attributed to %q, want freeze-properties", got.Rule)
	}

	// Reads stay open under the same overlay.
	got = svc.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationRead,
		Collection: access.CollectionProperties,
		DocumentID: "prop-1",
	})
	if !got.Allowed {
		t.Errorf("overlay blocked a read it does not match: %+v", got)
	}
}

func TestDecisionService_OverlayNeverGrants(t *testing.T) {
	// An overlay matching nothing leaves base denials intact.
	svc, _ := newTestPipeline(t, nil, []OverlayRule{
		{Name: "idle", Condition: `false`},
	})

	got := svc.EvaluateDocument(context.Background(), access.Request{
		Operation:  access.OperationDelete,
		Collection: access.CollectionProperties,
		DocumentID: "prop-1",
		Subject:    "stranger",
		Existing:   document.Document{"ownerId": "someone-else"},
	})
	if got.Allowed {
		t.Errorf("base denial survived overlays = false, decision %+v", got)
	}
}

func TestDecisionService_ErroringOverlayDenies(t *testing.T) {
	// Division by zero at evaluation time. Compiles fine, errors at runtime.
	svc, _ := newTestPipeline(t, map[string]document.Document{
		"user-1": {"role": "user"},
	}, []OverlayRule{
		{Name: "broken", Condition: `1 / (size(changed_fields) - size(changed_fields)) > 0`},
	})

	got := svc.EvaluateDocument(context.Background(), access.Request{
		Operation:  access.OperationRead,
		Collection: access.CollectionUsers,
		DocumentID: "user-2",
		Subject:    "user-1",
	})
	if got.Allowed {
		t.Fatalf("erroring overlay allowed the request: %+v", got)
	}
	if got.Rule != "broken" {
		t.Errorf("deny attributed to %q, want broken", got.Rule)
	}
}

func TestDecisionService_StorageOverlay(t *testing.T) {
	svc, _ := newTestPipeline(t, map[string]document.Document{
		"agent-1": {"role": "agent"},
	}, []OverlayRule{
		{Name: "lock-agent-photos", Condition: `glob("agent-photos/*", object_path) && operation == "delete"`},
	})

	ctx := context.Background()

	got := svc.EvaluateStorage(ctx, access.StorageRequest{
		Operation: access.OperationDelete,
		Path:      "agent-photos/agent-1",
		Subject:   "agent-1",
	})
	if got.Allowed {
		t.Errorf("overlay did not block photo delete: %+v", got)
	}

	got = svc.EvaluateStorage(ctx, access.StorageRequest{
		Operation:   access.OperationCreate,
		Path:        "agent-photos/agent-1",
		Subject:     "agent-1",
		ContentType: "image/jpeg",
		Size:        1024,
	})
	if !got.Allowed {
		t.Errorf("overlay blocked an upload it does not match: %+v", got)
	}
}

func TestDecisionService_WritesAuditRecords(t *testing.T) {
	svc, trailStore := newTestPipeline(t, map[string]document.Document{
		"admin-1": {"role": "admin"},
	}, nil)

	ctx := context.Background()

	svc.EvaluateDocument(ctx, access.Request{
		Operation:  access.OperationDelete,
		Collection: access.CollectionInquiries,
		DocumentID: "inq-1",
		Subject:    "admin-1",
		Existing:   document.Document{"userId": "buyer-1"},
	})
	svc.EvaluateStorage(ctx, access.StorageRequest{
		Operation: access.OperationRead,
		Path:      "properties/agent-1/photo.png",
	})

	// Batch size 1: records land synchronously enough to poll for.
	var recent []audit.Record
	for i := 0; i < 200; i++ {
		recent = trailStore.Recent(10)
		if len(recent) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(recent) != 2 {
		t.Fatalf("trail holds %d records, want 2", len(recent))
	}

	// Newest first: the storage read comes back before the delete.
	storageRec, docRec := recent[0], recent[1]
	if storageRec.Kind != audit.KindStorage || storageRec.Path != "properties/agent-1/photo.png" {
		t.Errorf("unexpected storage record: %+v", storageRec)
	}
	if storageRec.Decision != audit.DecisionAllow {
		t.Errorf("storage read recorded as %s", storageRec.Decision)
	}
	if docRec.Kind != audit.KindDocument || docRec.Collection != access.CollectionInquiries {
		t.Errorf("unexpected document record: %+v", docRec)
	}
	if docRec.Decision != audit.DecisionAllow || docRec.Role != "admin" {
		t.Errorf("admin inquiry delete recorded as %s with role %q", docRec.Decision, docRec.Role)
	}
	if docRec.ID == "" || docRec.Fingerprint == 0 {
		t.Errorf("record missing id or fingerprint: %+v", docRec)
	}
}

func TestCompileOverlays_RejectsInvalid(t *testing.T) {
	ev, err := celeval.NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error: %v", err)
	}

	cases := []struct {
		name  string
		rules []OverlayRule
	}{
		{"empty name", []OverlayRule{{Name: "", Condition: "true"}}},
		{"empty condition", []OverlayRule{{Name: "x", Condition: ""}}},
		{"unknown variable", []OverlayRule{{Name: "x", Condition: "nonsense == 1"}}},
		{"not boolean", []OverlayRule{{Name: "x", Condition: `"str"`}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CompileOverlays(ev, tc.rules); err == nil {
				t.Error("CompileOverlays() accepted an invalid rule")
			}
		})
	}
}
