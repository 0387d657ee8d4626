// Package rules implements the per-collection access rule table.
//
// Each collection maps each operation kind to an ordered list of named allow
// conditions. Evaluation is a short-circuiting OR: the first satisfied
// condition grants access, and a request that satisfies none is denied.
// Conditions are pure predicates over (principal, existing, proposed); they
// never raise an error past the table; a malformed document simply fails
// the condition's own shape check.
package rules

import (
	"context"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
)

// condition is a single named allow condition.
type condition struct {
	// name identifies the condition in decisions and the audit trail.
	name string
	// allow reports whether the condition grants the request.
	allow func(req access.Request, p principal.Principal) bool
}

// ruleSet maps operation kinds to their allow conditions for one collection.
type ruleSet map[access.Operation][]condition

// Table evaluates document-store requests against the collection rule sets.
// It is immutable after construction and safe for concurrent use.
type Table struct {
	resolver    principal.Resolver
	collections map[string]ruleSet
}

// NewTable builds the rule table over the given resolver.
func NewTable(resolver principal.Resolver) *Table {
	return &Table{
		resolver: resolver,
		collections: map[string]ruleSet{
			access.CollectionUsers:         usersRules(),
			access.CollectionAgents:        agentsRules(),
			access.CollectionProperties:    propertiesRules(),
			access.CollectionInquiries:     inquiriesRules(),
			access.CollectionPropertyViews: propertyViewsRules(),
		},
	}
}

// Evaluate decides a document-store request. The principal is resolved
// fresh for every call; nothing is cached between evaluations.
func (t *Table) Evaluate(ctx context.Context, req access.Request) access.Decision {
	p := t.resolver.Resolve(ctx, req.Subject)
	return t.EvaluateAs(req, p)
}

// EvaluateAs decides a request for an already-resolved principal.
// Callers that resolved the principal themselves (to share the lookup with
// overlays or the audit trail) use this entry point.
func (t *Table) EvaluateAs(req access.Request, p principal.Principal) access.Decision {
	if !req.Operation.Valid() {
		return access.Deny("unknown operation")
	}
	rs, ok := t.collections[req.Collection]
	if !ok {
		return access.Deny("unknown collection")
	}
	for _, c := range rs[req.Operation] {
		if c.allow(req, p) {
			return access.Allow(c.name)
		}
	}
	return access.Deny("no allow condition satisfied")
}
