package access

import "context"

// Engine evaluates document and object-store requests against the rule set.
//
// Evaluations are pure with respect to their inputs: the same request against
// the same store state yields the same decision. Implementations never return
// an error to the caller; every internal failure collapses to a deny.
type Engine interface {
	// EvaluateDocument decides a document-store request.
	EvaluateDocument(ctx context.Context, req Request) Decision

	// EvaluateStorage decides an object-store request.
	EvaluateStorage(ctx context.Context, req StorageRequest) Decision
}
