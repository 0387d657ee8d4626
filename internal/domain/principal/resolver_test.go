package principal

import (
	"context"
	"errors"
	"testing"

	"github.com/parcelgate/parcelgate/internal/domain/document"
)

type stubReader struct {
	docs map[string]document.Document
	err  error
}

func (s *stubReader) Get(_ context.Context, collection, id string) (document.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	if collection != "users" {
		return nil, document.ErrNotFound
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

func TestDirectoryResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reader  *stubReader
		subject string
		want    Principal
	}{
		{
			name:    "empty subject resolves anonymous",
			reader:  &stubReader{},
			subject: "",
			want:    Anonymous,
		},
		{
			name: "role from profile document",
			reader: &stubReader{docs: map[string]document.Document{
				"agent-1": {"role": "agent"},
			}},
			subject: "agent-1",
			want:    Principal{Subject: "agent-1", Role: RoleAgent},
		},
		{
			name:    "missing profile resolves without role",
			reader:  &stubReader{},
			subject: "ghost",
			want:    Principal{Subject: "ghost"},
		},
		{
			name: "missing role field resolves without role",
			reader: &stubReader{docs: map[string]document.Document{
				"u1": {"displayName": "Pat"},
			}},
			subject: "u1",
			want:    Principal{Subject: "u1"},
		},
		{
			name: "non-string role field resolves without role",
			reader: &stubReader{docs: map[string]document.Document{
				"u1": {"role": 7},
			}},
			subject: "u1",
			want:    Principal{Subject: "u1"},
		},
		{
			name: "unknown role value resolves without role",
			reader: &stubReader{docs: map[string]document.Document{
				"u1": {"role": "superuser"},
			}},
			subject: "u1",
			want:    Principal{Subject: "u1"},
		},
		{
			name:    "store failure fails closed",
			reader:  &stubReader{err: errors.New("connection refused")},
			subject: "agent-1",
			want:    Principal{Subject: "agent-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewDirectoryResolver(tt.reader, nil)
			got := r.Resolve(context.Background(), tt.subject)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.subject, got, tt.want)
			}
		})
	}
}

func TestPrincipal_RolePredicates(t *testing.T) {
	t.Parallel()

	if Anonymous.Authenticated() {
		t.Error("Anonymous reports authenticated")
	}
	if !(Principal{Subject: "u1", Role: RoleAgent}).Elevated() {
		t.Error("agent not elevated")
	}
	if !(Principal{Subject: "u1", Role: RoleAdmin}).Elevated() {
		t.Error("admin not elevated")
	}
	if (Principal{Subject: "u1", Role: RoleUser}).Elevated() {
		t.Error("plain user elevated")
	}
	if (Principal{Subject: "u1", Role: RoleAgent}).Admin() {
		t.Error("agent reports admin")
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	if ParseRole("agent") != RoleAgent {
		t.Error(`ParseRole("agent") != RoleAgent`)
	}
	if ParseRole("root") != RoleNone {
		t.Error(`ParseRole("root") != RoleNone`)
	}
	if ParseRole("") != RoleNone {
		t.Error(`ParseRole("") != RoleNone`)
	}
}
