// Package audit contains domain types for the decision audit trail.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/parcelgate/parcelgate/internal/domain/access"
	"github.com/parcelgate/parcelgate/internal/domain/document"
)

// Decision constants for audit records.
const (
	// DecisionAllow indicates the request was permitted.
	DecisionAllow = "allow"
	// DecisionDeny indicates the request was blocked.
	DecisionDeny = "deny"
)

// Kind constants identify which rule table produced a record.
const (
	KindDocument = "document"
	KindStorage  = "storage"
)

// Record is one evaluated request in the audit trail.
type Record struct {
	// ID is the unique record id.
	ID string `json:"id"`
	// Timestamp is when the evaluation happened (UTC).
	Timestamp time.Time `json:"timestamp"`
	// Kind is "document" or "storage".
	Kind string `json:"kind"`
	// Operation is the requested access kind.
	Operation string `json:"operation"`
	// Collection is the document collection, empty for storage records.
	Collection string `json:"collection,omitempty"`
	// DocumentID is the target document id, empty for storage records.
	DocumentID string `json:"document_id,omitempty"`
	// Path is the object path, empty for document records.
	Path string `json:"path,omitempty"`
	// Subject is the requesting subject id, empty for anonymous.
	Subject string `json:"subject,omitempty"`
	// Role is the role the subject resolved to for this evaluation.
	Role string `json:"role,omitempty"`
	// Decision is "allow" or "deny".
	Decision string `json:"decision"`
	// Rule names the condition or overlay that produced the decision.
	Rule string `json:"rule,omitempty"`
	// Reason explains a deny. Never surfaced to clients.
	Reason string `json:"reason,omitempty"`
	// Fingerprint is a hash of the request descriptor. Replays of an
	// identical descriptor share a fingerprint, which makes view-counter
	// replay and probing visible in the trail.
	Fingerprint uint64 `json:"fingerprint"`
}

// FingerprintDocument hashes a document request descriptor.
// The hash covers the identifying fields and the change set, not the full
// document bodies, so the trail never embeds proposed content.
func FingerprintDocument(req access.Request) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(string(req.Operation))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.Collection)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.DocumentID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.Subject)
	for _, f := range document.ChangedFields(req.Existing, req.Proposed) {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(f)
	}
	return h.Sum64()
}

// FingerprintStorage hashes a storage request descriptor.
func FingerprintStorage(req access.StorageRequest) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(string(req.Operation))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.Path)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.Subject)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.ContentType)
	_, _ = h.WriteString(fmt.Sprintf("\x00%d", req.Size))
	return h.Sum64()
}

// sensitiveKeywords lists substrings that mark a document field as
// sensitive when logging. Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private",
}

// RedactDocument returns a copy of doc with sensitive field values masked.
func RedactDocument(doc document.Document) document.Document {
	if len(doc) == 0 {
		return doc
	}
	redacted := make(document.Document, len(doc))
	for k, v := range doc {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
