// Package settings defines the registry of known setting keys, their
// defaults, and the effective-settings merge: registry defaults, then
// persisted app settings, then the active profile, then the active
// workspace overrides. Snapshots are assembled per request and never
// cached across requests.
package settings

import (
	"fmt"
	"strconv"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// Kind is the value type of a registry key.
type Kind string

// Registry value kinds.
const (
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindString Kind = "string"
)

// Setting keys. The closed registry below is the source of truth;
// Set rejects anything outside it.
const (
	KeyPrivacyMode            = "privacy_mode"
	KeyAllowQueryTextLogging  = "allow_query_text_logging"
	KeyVerboseLogging         = "verbose_logging"
	KeyRedactAuditPayloads    = "redact_audit_payloads"
	KeyQuarantineMode         = "quarantine_mode"
	KeyWritePreviewDefault    = "write_preview_default"
	KeyDefaultSearchProvider  = "default_search_provider"
	KeyMaxToolCallsPerMessage = "max_tool_calls_per_message"
	KeyToolCallsPerMinute     = "tool_calls_per_minute"
	KeyMaxFileReadsPerRun     = "max_file_reads_per_run"
	KeyMaxFileReadBytes       = "max_file_read_bytes_per_run"
	KeyMaxRunSeconds          = "max_run_seconds"
	KeyWorkerTimeoutSeconds   = "worker_timeout_seconds"
	KeyWorkerOutputCapBytes   = "worker_output_cap_bytes"
)

// Spec describes one registry entry.
type Spec struct {
	Key     string
	Kind    Kind
	Default any
}

// registry is the closed set of known keys.
var registry = []Spec{
	{KeyPrivacyMode, KindBool, true},
	{KeyAllowQueryTextLogging, KindBool, false},
	{KeyVerboseLogging, KindBool, false},
	{KeyRedactAuditPayloads, KindBool, true},
	{KeyQuarantineMode, KindBool, false},
	{KeyWritePreviewDefault, KindBool, true},
	{KeyDefaultSearchProvider, KindString, "duckduckgo"},
	{KeyMaxToolCallsPerMessage, KindInt, 3},
	{KeyToolCallsPerMinute, KindInt, 15},
	{KeyMaxFileReadsPerRun, KindInt, 20},
	{KeyMaxFileReadBytes, KindInt, 5_000_000},
	{KeyMaxRunSeconds, KindInt, 120},
	{KeyWorkerTimeoutSeconds, KindInt, 30},
	{KeyWorkerOutputCapBytes, KindInt, 262_144},
}

// Registry returns the known key specs.
func Registry() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// Defaults returns a fresh key→default map.
func Defaults() map[string]any {
	out := make(map[string]any, len(registry))
	for _, s := range registry {
		out[s.Key] = s.Default
	}
	return out
}

// lookup finds a registry spec by key.
func lookup(key string) (Spec, bool) {
	for _, s := range registry {
		if s.Key == key {
			return s, true
		}
	}
	return Spec{}, false
}

// Coerce validates a raw value against the key's registered kind and
// returns the canonical representation. JSON decoding hands ints back
// as float64; string forms of bools and ints are accepted for the CLI.
func Coerce(key string, value any) (any, error) {
	spec, ok := lookup(key)
	if !ok {
		return nil, fault.Validation("unknown setting %q", key)
	}
	switch spec.Kind {
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fault.Validation("setting %q expects a bool, got %q", key, v)
			}
			return b, nil
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fault.Validation("setting %q expects an int, got %q", key, v)
			}
			return n, nil
		}
	case KindString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	}
	return nil, fault.Validation("setting %q expects %s, got %T", key, spec.Kind, value)
}

// asBool reads a coerced value; defaults win on shape mismatch.
func asBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	spec, _ := lookup(key)
	b, _ := spec.Default.(bool)
	return b
}

func asInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	spec, _ := lookup(key)
	n, _ := spec.Default.(int)
	return n
}

func asString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	spec, _ := lookup(key)
	s, _ := spec.Default.(string)
	return s
}

// String renders a coerced value for display.
func String(value any) string {
	return fmt.Sprintf("%v", value)
}
