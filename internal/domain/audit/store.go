package audit

import "context"

// Store persists audit records.
// Interface owned by domain per hexagonal architecture.
// Implementations handle batching; the async writer sits above this.
type Store interface {
	// Append stores audit records in order.
	Append(ctx context.Context, records ...Record) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Filter specifies query parameters for audit log reads.
type Filter struct {
	// SessionID filters by session (optional).
	SessionID string
	// EventType filters by event type (optional).
	EventType string
	// Limit caps the number of returned records; 0 means the default of 200.
	Limit int
}

// DefaultListLimit applies when Filter.Limit is zero.
const DefaultListLimit = 200
