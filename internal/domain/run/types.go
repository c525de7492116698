// Package run contains domain types for the per-run event log. A run is
// one logical user-triggered flow (a chat turn or a workflow execution)
// against which events and a final duration are recorded.
package run

import "time"

// Modes a run can execute in. The mode gates which tools the policy
// guard admits.
const (
	ModeChat     = "chat"
	ModeWorkflow = "workflow"
)

// Run is one logical flow. InputHash is always stored; InputText only
// when privacy mode is off and query text logging is allowed.
type Run struct {
	ID        string
	SessionID string
	Mode      string
	InputHash string
	InputText string
	// ModelSourceID and ModelName identify the model that served the
	// run, when one did.
	ModelSourceID string
	ModelName     string
	// DurationMS is set by FinishRun; nil while the run is open.
	DurationMS *int64
	CreatedAt  time.Time
}

// Event is one append-only entry in a run's event stream, ordered by
// CreatedAt within the run.
type Event struct {
	ID        string
	RunID     string
	EventType string
	Payload   map[string]any
	CreatedAt time.Time
}
