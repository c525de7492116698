// Package tool contains the local tool plugins: schema-described
// operations executed inside the worker subprocess. The parent process
// decides whether a tool may run; the plugins themselves only perform
// the narrow operation their name implies.
package tool

import (
	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// Builtin tool names.
const (
	NameFileRead      = "file_read"
	NameFileWrite     = "file_write"
	NameFileList      = "file_list"
	NameFileReadBatch = "file_read_batch"
)

// Requirement is one permission a tool needs before it may run.
// PathScoped requirements are checked against the path argument of the
// call, not just the bare permission.
type Requirement struct {
	Permission permission.Permission
	PathScoped bool
}

// Plugin is one registered tool. Run executes in the worker subprocess
// with no access to the grant store; every authorization decision
// happens in the parent before the worker is spawned.
type Plugin interface {
	Name() string
	Description() string
	// InputSchema is a JSON-schema-shaped description of the arguments.
	InputSchema() map[string]any
	// Requirements lists the permissions the parent must verify.
	Requirements() []Requirement
	// Run performs the operation. Errors surface to the parent as
	// ok=false worker responses.
	Run(args map[string]any) (map[string]any, error)
}

// stringArg reads a string argument, returning "" when absent or of the
// wrong type.
func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads an integer argument with a default. JSON decoding hands
// numbers back as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// boolArg reads a boolean argument, false when absent.
func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// stringsArg reads a []string argument, tolerating []any payloads from
// JSON decoding. Non-string members are dropped.
func stringsArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
