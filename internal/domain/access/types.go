// Package access contains the request/decision contract of the policy engine.
package access

import "github.com/parcelgate/parcelgate/internal/domain/document"

// Operation is the kind of access being requested.
type Operation string

const (
	// OperationRead fetches an existing document or object.
	OperationRead Operation = "read"
	// OperationCreate writes a document or object where none exists.
	OperationCreate Operation = "create"
	// OperationUpdate replaces an existing document or object.
	OperationUpdate Operation = "update"
	// OperationDelete removes an existing document or object.
	OperationDelete Operation = "delete"
)

// Valid reports whether op is one of the four known operation kinds.
func (op Operation) Valid() bool {
	switch op {
	case OperationRead, OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Governed collection names. These are part of the external contract and
// must match the hosting document store verbatim.
const (
	CollectionUsers         = "users"
	CollectionAgents        = "agents"
	CollectionProperties    = "properties"
	CollectionInquiries     = "inquiries"
	CollectionPropertyViews = "propertyViews"
)

// Request describes one document-store access for evaluation.
// Existing is nil when no document exists at the target path; Proposed is
// nil on read and delete.
type Request struct {
	// Operation is the access kind being requested.
	Operation Operation
	// Collection is the document-store partition being accessed.
	Collection string
	// DocumentID is the id of the target document within the collection.
	DocumentID string
	// Subject is the authenticated subject id, or empty for anonymous.
	Subject string
	// Existing is the current document state, nil if absent.
	Existing document.Document
	// Proposed is the document state the write would establish.
	Proposed document.Document
}

// StorageRequest describes one object-store access for evaluation.
type StorageRequest struct {
	// Operation is the access kind being requested.
	Operation Operation
	// Path is the full object path (e.g. "properties/agent-1/photo.png").
	Path string
	// Subject is the authenticated subject id, or empty for anonymous.
	Subject string
	// ContentType is the declared MIME type of the uploaded object.
	// Only meaningful on create and update.
	ContentType string
	// Size is the object size in bytes. Only meaningful on create and update.
	Size int64
}

// Decision is the outcome of evaluating a request.
// The boundary contract is the Allowed boolean; Rule and Reason exist for
// the audit trail and are never surfaced to the requesting client.
type Decision struct {
	// Allowed is true when some allow condition was satisfied and no
	// overlay denied the request.
	Allowed bool
	// Rule names the allow condition or overlay that produced the decision.
	Rule string
	// Reason explains a deny for the audit trail.
	Reason string
}

// Allow returns an allowing decision attributed to the named rule.
func Allow(rule string) Decision {
	return Decision{Allowed: true, Rule: rule}
}

// Deny returns a denying decision with an audit-trail reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DenyRule returns a denying decision attributed to a named rule
// (used by overlays, which deny by name).
func DenyRule(rule, reason string) Decision {
	return Decision{Allowed: false, Rule: rule, Reason: reason}
}
