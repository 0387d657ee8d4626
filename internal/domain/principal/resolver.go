package principal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
)

// Resolver maps a subject id to a Principal.
//
// Resolution happens fresh on every evaluation. Decisions are never cached
// across requests: a role change must take effect on the next evaluation,
// and caching would open a privilege window on revocation.
type Resolver interface {
	// Resolve returns the principal for the given subject id.
	// An empty subject resolves to Anonymous. Resolution never fails:
	// any lookup problem yields a principal with RoleNone, which makes
	// every role-gated check deny (fail-closed).
	Resolve(ctx context.Context, subject string) Principal
}

// roleField is the profile document field carrying the role.
const roleField = "role"

// DirectoryResolver resolves roles from the users collection: the profile
// document keyed by the subject id is the only authoritative role source.
type DirectoryResolver struct {
	store  document.Reader
	logger *slog.Logger
}

// NewDirectoryResolver creates a resolver backed by the given store.
func NewDirectoryResolver(store document.Reader, logger *slog.Logger) *DirectoryResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryResolver{store: store, logger: logger}
}

// Resolve looks up users/{subject} and extracts its role field.
// Missing document, missing or mistyped role field, and store errors all
// resolve to RoleNone.
func (r *DirectoryResolver) Resolve(ctx context.Context, subject string) Principal {
	if subject == "" {
		return Anonymous
	}

	doc, err := r.store.Get(ctx, access.CollectionUsers, subject)
	if err != nil {
		if !errors.Is(err, document.ErrNotFound) {
			// Store unavailable: the principal keeps its subject but
			// resolves without a role, so role-gated rules deny.
			r.logger.Warn("role lookup failed, resolving without role",
				"subject", subject,
				"error", err,
			)
		}
		return Principal{Subject: subject}
	}

	role, ok := doc.String(roleField)
	if !ok {
		return Principal{Subject: subject}
	}

	return Principal{Subject: subject, Role: ParseRole(role)}
}

var _ Resolver = (*DirectoryResolver)(nil)
