package audit

import "context"

// Store persists audit records.
// Interface owned by the domain; adapters implement it.
type Store interface {
	// Append stores audit records. Must not block the decision hot path
	// beyond a bounded send.
	Append(ctx context.Context, records ...Record) error

	// Recent returns the n most recent records, newest first.
	Recent(n int) []Record

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}
