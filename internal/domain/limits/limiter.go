// Package limits bounds the work a single logical run can do: tool calls
// per message, files and bytes read, wall time, and a process-wide
// per-session call rate.
package limits

import (
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// Limit keys recognized in budget maps and policy limit overrides.
const (
	KeyMaxToolCallsPerMessage = "max_tool_calls_per_message"
	KeyToolCallsPerMinute     = "tool_calls_per_minute"
	KeyMaxFileReadsPerRun     = "max_file_reads_per_run"
	KeyMaxFileReadBytes       = "max_file_read_bytes_per_run"
	KeyMaxRunSeconds          = "max_run_seconds"
)

// Budgets holds the thresholds one RunLimiter enforces.
type Budgets struct {
	MaxToolCallsPerMessage int
	ToolCallsPerMinute     int
	MaxFileReadsPerRun     int
	MaxFileReadBytesPerRun int64
	MaxRunSeconds          int
}

// Map renders the budgets as the key→int map the policy DSL overrides
// operate on. Byte budgets above MaxInt on 32-bit platforms are not a
// concern at these sizes.
func (b Budgets) Map() map[string]int {
	return map[string]int{
		KeyMaxToolCallsPerMessage: b.MaxToolCallsPerMessage,
		KeyToolCallsPerMinute:     b.ToolCallsPerMinute,
		KeyMaxFileReadsPerRun:     b.MaxFileReadsPerRun,
		KeyMaxFileReadBytes:       int(b.MaxFileReadBytesPerRun),
		KeyMaxRunSeconds:          b.MaxRunSeconds,
	}
}

// BudgetsFromMap rebuilds Budgets from an override-applied map. Keys
// missing from the map keep the zero value; callers pass maps produced
// by Budgets.Map so all keys are present.
func BudgetsFromMap(m map[string]int) Budgets {
	return Budgets{
		MaxToolCallsPerMessage: m[KeyMaxToolCallsPerMessage],
		ToolCallsPerMinute:     m[KeyToolCallsPerMinute],
		MaxFileReadsPerRun:     m[KeyMaxFileReadsPerRun],
		MaxFileReadBytesPerRun: int64(m[KeyMaxFileReadBytes]),
		MaxRunSeconds:          m[KeyMaxRunSeconds],
	}
}

// RunLimiter tracks consumption for one logical run. Not safe for
// concurrent use; a run is a single call chain.
type RunLimiter struct {
	budgets   Budgets
	sessionID string

	toolCalls int
	filesRead int
	bytesRead int64
	start     time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewRunLimiter creates a limiter with its clock started.
func NewRunLimiter(sessionID string, budgets Budgets) *RunLimiter {
	l := &RunLimiter{
		budgets:   budgets,
		sessionID: sessionID,
		now:       time.Now,
	}
	l.start = l.now()
	return l
}

// SessionID returns the session this limiter belongs to.
func (l *RunLimiter) SessionID() string {
	return l.sessionID
}

// Budgets returns the thresholds in effect.
func (l *RunLimiter) Budgets() Budgets {
	return l.budgets
}

// CheckRuntime fails when the wall-time budget is spent.
func (l *RunLimiter) CheckRuntime() error {
	if l.now().Sub(l.start) > time.Duration(l.budgets.MaxRunSeconds)*time.Second {
		return fault.Limit("Run time limit exceeded")
	}
	return nil
}

// CheckToolCall fails when one more tool call would exceed the
// per-message cap. The check precedes the side effect it guards;
// call RecordToolCall only after the tool is committed to run.
func (l *RunLimiter) CheckToolCall() error {
	if l.toolCalls+1 > l.budgets.MaxToolCallsPerMessage {
		return fault.Limit("Tool call limit exceeded for this message")
	}
	return nil
}

// RecordToolCall counts one tool call.
func (l *RunLimiter) RecordToolCall() {
	l.toolCalls++
}

// RecordFileReads checks both the file-count and byte budgets before
// accumulating either; a failed check leaves the counters untouched.
func (l *RunLimiter) RecordFileReads(files int, bytes int64) error {
	if l.filesRead+files > l.budgets.MaxFileReadsPerRun {
		return fault.Limit("File read count limit exceeded")
	}
	if l.bytesRead+bytes > l.budgets.MaxFileReadBytesPerRun {
		return fault.Limit("File read bytes limit exceeded")
	}
	l.filesRead += files
	l.bytesRead += bytes
	return nil
}

// ToolCalls returns the calls recorded so far.
func (l *RunLimiter) ToolCalls() int {
	return l.toolCalls
}
