// Package worker is the tool execution side of the two-process split:
// the server re-invokes its own binary in worker mode, writes one
// request to its stdin, and reads one response from its stdout. The
// worker holds no database handle and no grant state; everything it may
// do is in the request.
package worker

// Request is the single JSON document the worker reads from stdin.
type Request struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Response is the single JSON document the worker writes to stdout.
// Exactly one of Result or Error is populated.
type Response struct {
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Trace  string         `json:"trace,omitempty"`

	// Truncation flags are set by the spawning side after capturing the
	// child's streams; they never travel on the wire.
	StdoutTruncated bool `json:"-"`
	StderrTruncated bool `json:"-"`
}
