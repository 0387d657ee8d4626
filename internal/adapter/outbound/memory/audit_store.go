package memory

import (
	"context"
	"sync"

	"github.com/parcelgate/parcelgate/internal/domain/audit"
)

const defaultRecentCap = 1000

// AuditStore implements audit.Store with a bounded in-memory ring buffer.
// Newest records evict oldest once the buffer is full. Backs the
// recent-audit API; durable persistence is the file store's job.
type AuditStore struct {
	mu     sync.Mutex
	recent []audit.Record
	cap    int
}

// NewAuditStore creates an audit ring buffer.
// An optional capacity parameter sets the buffer size (default 1000).
func NewAuditStore(capacity ...int) *AuditStore {
	c := defaultRecentCap
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	return &AuditStore{
		recent: make([]audit.Record, 0, c),
		cap:    c,
	}
}

// Append stores records in the ring buffer, dropping the oldest at capacity.
func (s *AuditStore) Append(ctx context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if len(s.recent) >= s.cap {
			// Shift left, drop oldest.
			copy(s.recent, s.recent[1:])
			s.recent[len(s.recent)-1] = r
		} else {
			s.recent = append(s.recent, r)
		}
	}
	return nil
}

// Recent returns the n most recent records, newest first.
func (s *AuditStore) Recent(n int) []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.recent)
	if n > total {
		n = total
	}
	if n <= 0 {
		return nil
	}
	result := make([]audit.Record, n)
	for i := 0; i < n; i++ {
		result[i] = s.recent[total-1-i]
	}
	return result
}

// Size returns the current number of buffered records.
func (s *AuditStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recent)
}

// Flush is a no-op; the ring buffer has no pending writes.
func (s *AuditStore) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *AuditStore) Close() error { return nil }

// Compile-time interface verification.
var _ audit.Store = (*AuditStore)(nil)
