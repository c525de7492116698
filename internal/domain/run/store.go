package run

import "context"

// Store persists runs and their event streams.
// Interface owned by the domain; implemented by the sqlite adapter.
type Store interface {
	// Create inserts a new open run.
	Create(ctx context.Context, r Run) error

	// AppendEvent appends one event to an open run.
	AppendEvent(ctx context.Context, e Event) error

	// Finish records the duration, closing the run.
	Finish(ctx context.Context, runID string, durationMS int64) error

	// Get returns the run. Missing runs return fault.ErrNotFound.
	Get(ctx context.Context, runID string) (*Run, error)

	// Events returns the run's events ordered by creation time.
	Events(ctx context.Context, runID string) ([]Event, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]Run, error)
}
