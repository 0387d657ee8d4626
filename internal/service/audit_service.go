package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parcelgate/parcelgate/internal/domain/audit"
)

// AuditService writes trail records through a buffered channel and a
// background worker so the decision hot path never waits on storage.
type AuditService struct {
	store         audit.Store
	records       chan audit.Record
	wg            sync.WaitGroup
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
	sendTimeout   time.Duration
	dropCount     atomic.Int64
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithBatchSize sets the number of records batched before a write.
func WithBatchSize(size int) AuditOption {
	return func(s *AuditService) {
		s.batchSize = size
	}
}

// WithFlushInterval sets how often a partial batch is flushed.
func WithFlushInterval(interval time.Duration) AuditOption {
	return func(s *AuditService) {
		s.flushInterval = interval
	}
}

// WithChannelSize sets the record channel capacity.
func WithChannelSize(size int) AuditOption {
	return func(s *AuditService) {
		s.records = make(chan audit.Record, size)
	}
}

// WithSendTimeout sets the backpressure bound. Zero drops immediately when
// the channel is full; a positive value blocks up to that duration first.
func WithSendTimeout(timeout time.Duration) AuditOption {
	return func(s *AuditService) {
		s.sendTimeout = timeout
	}
}

// NewAuditService creates the trail writer over the given store.
func NewAuditService(store audit.Store, logger *slog.Logger, opts ...AuditOption) *AuditService {
	s := &AuditService{
		store:         store,
		records:       make(chan audit.Record, 1000),
		logger:        logger,
		batchSize:     100,
		flushInterval: time.Second,
		sendTimeout:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background worker.
func (s *AuditService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
}

// Record hands a trail record to the worker. When the channel is full it
// blocks up to the send timeout, then drops the record and counts it.
func (s *AuditService) Record(rec audit.Record) {
	select {
	case s.records <- rec:
		return
	default:
	}

	if s.sendTimeout <= 0 {
		s.recordDrop(rec)
		return
	}

	select {
	case s.records <- rec:
	case <-time.After(s.sendTimeout):
		s.recordDrop(rec)
	}
}

// Recent returns the n most recent trail records, newest first.
func (s *AuditService) Recent(n int) []audit.Record {
	return s.store.Recent(n)
}

// DroppedRecords returns the total number of dropped records.
func (s *AuditService) DroppedRecords() int64 {
	return s.dropCount.Load()
}

// Stop closes the channel and waits for the worker to flush and exit.
func (s *AuditService) Stop() {
	close(s.records)
	s.wg.Wait()
}

func (s *AuditService) recordDrop(rec audit.Record) {
	drops := s.dropCount.Add(1)
	s.logger.Warn("trail record dropped",
		"record", rec.ID,
		"kind", rec.Kind,
		"total_drops", drops,
	)
}

// worker collects records into batches and flushes on size or interval.
func (s *AuditService) worker(ctx context.Context) {
	defer s.wg.Done()

	batch := make([]audit.Record, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-s.records:
			if !ok {
				// Channel closed. Final flush with a bounded deadline.
				if len(batch) > 0 {
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					s.flush(flushCtx, batch)
					cancel()
				}
				return
			}
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			// Drain whatever is already queued, then flush.
			for rec := range s.records {
				batch = append(batch, rec)
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				s.flush(flushCtx, batch)
				cancel()
			}
			return
		}
	}
}

// flush writes a batch to the store. Errors are logged, not propagated;
// a broken trail must not fail decisions.
func (s *AuditService) flush(ctx context.Context, batch []audit.Record) {
	if err := s.store.Append(ctx, batch...); err != nil {
		s.logger.Error("failed to write trail batch",
			"error", err,
			"count", len(batch),
		)
	}
}
