package memory

import (
	"context"
	"sync"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
	"github.com/Geo-fs/NeroAI/internal/domain/run"
)

// RunStore is an in-memory run.Store.
type RunStore struct {
	mu     sync.Mutex
	runs   map[string]*run.Run
	order  []string
	events map[string][]run.Event
}

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:   make(map[string]*run.Run),
		events: make(map[string][]run.Event),
	}
}

// Create inserts a new open run.
func (s *RunStore) Create(_ context.Context, r run.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.runs[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

// AppendEvent appends one event to a run's stream.
func (s *RunStore) AppendEvent(_ context.Context, e run.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.RunID] = append(s.events[e.RunID], e)
	return nil
}

// Finish records the duration, closing the run.
func (s *RunStore) Finish(_ context.Context, runID string, durationMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fault.NotFound("run", runID)
	}
	r.DurationMS = &durationMS
	return nil
}

// Get returns the run.
func (s *RunStore) Get(_ context.Context, runID string) (*run.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, fault.NotFound("run", runID)
	}
	cp := *r
	return &cp, nil
}

// Events returns the run's events in append order.
func (s *RunStore) Events(_ context.Context, runID string) ([]run.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]run.Event(nil), s.events[runID]...), nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(_ context.Context, limit int) ([]run.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []run.Run
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.runs[s.order[i]])
	}
	return out, nil
}

var _ run.Store = (*RunStore)(nil)
