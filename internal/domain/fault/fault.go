// Package fault defines the error taxonomy shared across the backend.
// Callers classify failures with errors.Is against the sentinel values;
// the typed errors carry the detail each kind needs.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input or an invalid state transition.
	ErrValidation = errors.New("validation failed")

	// ErrPermissionDenied is returned for any guard or broker denial.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrLimit is returned when a budget or rate limit would be exceeded.
	ErrLimit = errors.New("limit exceeded")

	// ErrWorkerFailure is returned when the tool worker exits non-zero,
	// times out, or reports ok=false.
	ErrWorkerFailure = errors.New("worker failure")

	// ErrTransient is returned for outbound failures that may succeed on retry.
	ErrTransient = errors.New("transient failure")
)

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// NotFound builds a NotFoundError for the given entity and id.
func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Entity)
}

// Is supports errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError reports malformed input.
type ValidationError struct {
	Msg string
}

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Is supports errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PermissionDeniedError is any denial from the guard chain. Kind names the
// check that denied: "mode", "workspace", "policy", a permission name such
// as "filesystem.read", or "safe_mode".
type PermissionDeniedError struct {
	Kind   string
	Reason string
}

// Denied builds a PermissionDeniedError.
func Denied(kind, reason string) *PermissionDeniedError {
	return &PermissionDeniedError{Kind: kind, Reason: reason}
}

// Code returns the machine-readable denial code callers use to prompt for
// a grant: permission_required:<kind>:<reason>.
func (e *PermissionDeniedError) Code() string {
	return fmt.Sprintf("permission_required:%s:%s", e.Kind, e.Reason)
}

func (e *PermissionDeniedError) Error() string {
	return e.Code()
}

// Is supports errors.Is(err, ErrPermissionDenied).
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// LimitError reports an exceeded budget with human-readable text.
type LimitError struct {
	Msg string
}

// Limit builds a LimitError.
func Limit(msg string) *LimitError {
	return &LimitError{Msg: msg}
}

func (e *LimitError) Error() string {
	return e.Msg
}

// Is supports errors.Is(err, ErrLimit).
func (e *LimitError) Is(target error) bool {
	return target == ErrLimit
}

// WorkerFailureError carries the truncated output of a failed tool worker.
type WorkerFailureError struct {
	Msg    string
	Stdout string
	Stderr string
}

// WorkerFailure builds a WorkerFailureError.
func WorkerFailure(msg, stdout, stderr string) *WorkerFailureError {
	return &WorkerFailureError{Msg: msg, Stdout: stdout, Stderr: stderr}
}

func (e *WorkerFailureError) Error() string {
	return e.Msg
}

// Is supports errors.Is(err, ErrWorkerFailure).
func (e *WorkerFailureError) Is(target error) bool {
	return target == ErrWorkerFailure
}

// TransientError wraps an outbound failure (model provider, search) that
// the caller may retry.
type TransientError struct {
	Op  string
	Err error
}

// Transient wraps err as a transient failure of the named operation.
func Transient(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, ErrTransient).
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}
