// Package audit contains domain types for the append-only audit log.
package audit

import (
	"strings"
	"time"
)

// EventType constants. These are the canonical names persisted in the
// audit log and asserted on by the test suite; do not rename.
const (
	// Permission broker events.
	EventPermissionGrant  = "permission.grant"
	EventPermissionRevoke = "permission.revoke"
	EventPermissionDenied = "permission.denied"

	// Guard chain denials.
	EventPolicyDenied    = "policy.denied"
	EventWorkspaceDenied = "workspace.denied"
	EventLimitBlocked    = "limit.blocked"

	// Execution events.
	EventToolCall      = "tool.call"
	EventSearchExecute = "search.execute"

	// Model provider events.
	EventModelUsage      = "model.usage"
	EventModelSourceAdd  = "model.source.add"
	EventModelSourceTest = "model.source.test"
)

// RedactedValue replaces any value stored under a sensitive key.
const RedactedValue = "***REDACTED***"

// Strings longer than maxStringLen are cut and marked.
const (
	maxStringLen     = 2048
	truncationMarker = "...<truncated>"
)

// sensitiveKeywords lists substrings that mark a payload key as sensitive.
// Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"token", "auth", "authorization", "password", "secret", "api_key", "key",
}

// Record represents a single audit log entry.
type Record struct {
	// ID is the row id, assigned when the record is built.
	ID string
	// SessionID scopes the event to a session; empty for global events.
	SessionID string
	// EventType is one of the Event* constants.
	EventType string
	// Summary is a one-line human-readable description.
	Summary string
	// Payload carries structured detail. It is redacted and projected
	// before persistence; never store raw payloads directly.
	Payload map[string]any
	// CreatedAt is when the event was recorded.
	CreatedAt time.Time
}

// Redact returns a deep copy of payload with sensitive values masked and
// oversized strings truncated. A key is sensitive if its lowercased form
// contains any of the sensitiveKeywords. The transformation recurses into
// nested maps and slices.
func Redact(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if isSensitiveKey(k) {
			out[k] = RedactedValue
		} else {
			out[k] = redactValue(v)
		}
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	case string:
		if len(val) > maxStringLen {
			return val[:maxStringLen] + truncationMarker
		}
		return val
	default:
		return v
	}
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// projectionFields is the payload whitelist applied when verbose logging
// is off. Everything outside this list is dropped before persistence.
var projectionFields = []string{
	"provider", "query_hash", "success", "num_results", "tool", "result_hash",
}

// Project reduces payload to the non-sensitive whitelist. Projection runs
// after redaction, as an independent pass.
func Project(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(projectionFields))
	for _, k := range projectionFields {
		if v, ok := payload[k]; ok {
			out[k] = v
		}
	}
	return out
}
