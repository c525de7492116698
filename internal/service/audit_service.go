// Package service composes the domain packages into the operations the
// HTTP surface and the CLI expose.
package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
)

// PayloadPolicy decides how much of an audit payload survives to disk.
// Redaction masks sensitive keys; when verbose is off the payload is
// additionally projected onto the non-sensitive whitelist.
type PayloadPolicy func(ctx context.Context) (redact, verbose bool)

// AuditService provides async audit logging with a buffered channel and
// background worker. Security decisions are recorded without blocking
// the request path.
type AuditService struct {
	store         audit.Store
	policy        PayloadPolicy
	auditChan     chan audit.Record
	wg            sync.WaitGroup
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	channelSize int           // capacity, for depth monitoring
	sendTimeout time.Duration // 0 = drop immediately, >0 = block up to this duration
	dropCount   atomic.Int64  // lock-free drop counter

	warningThreshold int          // percentage (0-100)
	lastWarning      atomic.Int64 // rate-limits warning logs (Unix nanos)
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithBatchSize sets the number of records to batch before writing.
func WithBatchSize(size int) AuditOption {
	return func(s *AuditService) {
		s.batchSize = size
	}
}

// WithFlushInterval sets the interval to flush pending records.
func WithFlushInterval(interval time.Duration) AuditOption {
	return func(s *AuditService) {
		s.flushInterval = interval
	}
}

// WithChannelSize sets the size of the audit channel buffer.
func WithChannelSize(size int) AuditOption {
	return func(s *AuditService) {
		s.auditChan = make(chan audit.Record, size)
		s.channelSize = size
	}
}

// WithSendTimeout sets the backpressure timeout.
// 0 = drop immediately, >0 = block up to this duration before dropping.
func WithSendTimeout(timeout time.Duration) AuditOption {
	return func(s *AuditService) {
		s.sendTimeout = timeout
	}
}

// NewAuditService creates an AuditService. policy may be nil, in which
// case payloads are redacted and projected (the conservative default).
func NewAuditService(store audit.Store, policy PayloadPolicy, logger *slog.Logger, opts ...AuditOption) *AuditService {
	if policy == nil {
		policy = func(context.Context) (bool, bool) { return true, false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaultChannelSize := 1000
	s := &AuditService{
		store:            store,
		policy:           policy,
		auditChan:        make(chan audit.Record, defaultChannelSize),
		logger:           logger,
		batchSize:        100,
		flushInterval:    time.Second,
		channelSize:      defaultChannelSize,
		sendTimeout:      100 * time.Millisecond,
		warningThreshold: 80,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background worker that batches and writes records.
func (s *AuditService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
}

// Record enqueues one audit record. The payload is transformed here, at
// enqueue time, so the raw payload never crosses the channel: sensitive
// keys are masked, and unless verbose logging is on the payload is
// reduced to the whitelist. Applies backpressure: a fast non-blocking
// send, then a bounded wait, then a counted drop.
func (s *AuditService) Record(rec audit.Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	redact, verbose := s.policy(context.Background())
	if redact {
		rec.Payload = audit.Redact(rec.Payload)
	}
	if !verbose {
		rec.Payload = audit.Project(rec.Payload)
	}

	if s.warningThreshold > 0 {
		depth := len(s.auditChan)
		threshold := s.channelSize * s.warningThreshold / 100
		if depth >= threshold {
			s.warnChannelDepth(depth)
		}
	}

	select {
	case s.auditChan <- rec:
		return
	default:
		// Channel full - apply backpressure.
	}

	if s.sendTimeout <= 0 {
		s.recordDrop(rec)
		return
	}

	select {
	case s.auditChan <- rec:
	case <-time.After(s.sendTimeout):
		s.recordDrop(rec)
	}
}

// List returns persisted records matching the filter. Reads go straight
// to the store; recently enqueued records may not be visible until the
// next flush.
func (s *AuditService) List(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	return s.store.List(ctx, filter)
}

func (s *AuditService) recordDrop(rec audit.Record) {
	drops := s.dropCount.Add(1)
	s.logger.Warn("audit record dropped",
		"event_type", rec.EventType,
		"session", rec.SessionID,
		"total_drops", drops,
	)
}

// warnChannelDepth logs a capacity warning, rate-limited to once per second.
func (s *AuditService) warnChannelDepth(depth int) {
	now := time.Now().UnixNano()
	last := s.lastWarning.Load()
	if now-last < int64(time.Second) {
		return
	}
	if s.lastWarning.CompareAndSwap(last, now) {
		s.logger.Warn("audit channel approaching capacity",
			"depth", depth,
			"capacity", s.channelSize,
			"percent", depth*100/s.channelSize,
		)
	}
}

// DroppedRecords returns total dropped records (for metrics).
func (s *AuditService) DroppedRecords() int64 {
	return s.dropCount.Load()
}

// ChannelDepth returns current channel usage (for monitoring).
func (s *AuditService) ChannelDepth() int {
	return len(s.auditChan)
}

// ChannelCapacity returns the channel's total capacity (for monitoring).
func (s *AuditService) ChannelCapacity() int {
	return cap(s.auditChan)
}

// Stop signals the worker to stop and waits for it to finish.
// Pending records are flushed before returning.
func (s *AuditService) Stop() {
	close(s.auditChan)
	s.wg.Wait()
}

// worker collects and flushes audit records.
func (s *AuditService) worker(ctx context.Context) {
	defer s.wg.Done()

	batch := make([]audit.Record, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-s.auditChan:
			if !ok {
				// Channel closed - final flush with bounded deadline.
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
			// Context cancelled - drain channel and flush with bounded deadline.
			for rec := range s.auditChan {
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

// flush writes a batch to the store. Errors are logged, not propagated:
// audit must not fail the operation it describes.
func (s *AuditService) flush(ctx context.Context, batch []audit.Record) {
	if err := s.store.Append(ctx, batch...); err != nil {
		s.logger.Error("failed to write audit batch",
			"error", err,
			"count", len(batch),
		)
	}
}
