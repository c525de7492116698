package memory

import (
	"context"
	"sync"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
)

// AuditStore is an in-memory audit.Store with a bounded ring of the
// most recent records.
type AuditStore struct {
	mu      sync.Mutex
	records []audit.Record
	cap     int
}

const defaultRecentCap = 1000

// NewAuditStore creates an audit store. An optional capacity parameter
// sets the ring size (default 1000).
func NewAuditStore(capacity ...int) *AuditStore {
	c := defaultRecentCap
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	return &AuditStore{cap: c}
}

// Append stores records in order, discarding the oldest past capacity.
func (s *AuditStore) Append(_ context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	if overflow := len(s.records) - s.cap; overflow > 0 {
		s.records = s.records[overflow:]
	}
	return nil
}

// List returns matching records, newest first.
func (s *AuditStore) List(_ context.Context, filter audit.Filter) ([]audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = audit.DefaultListLimit
	}

	var out []audit.Record
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if filter.EventType != "" && rec.EventType != filter.EventType {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ audit.Store = (*AuditStore)(nil)
