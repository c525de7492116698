package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

// resolveValue substitutes {{path.to.var}} placeholders against the
// variable bag. A string that is exactly one placeholder resolves to the
// referenced value itself, preserving its type; placeholders embedded in
// longer text render as strings. Maps and slices resolve recursively.
func resolveValue(value any, vars map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := resolveValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolveValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(s string, vars map[string]any) (any, error) {
	matches := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// Whole-string placeholder keeps the referenced value's type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		return lookup(path, vars)
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		value, err := lookup(s[m[2]:m[3]], vars)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "%v", value)
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

// lookup walks a dotted path through nested maps.
func lookup(path string, vars map[string]any) (any, error) {
	parts := strings.Split(path, ".")
	var cur any = vars
	for i, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fault.Validation("template variable %q: %q is not a map", path, strings.Join(parts[:i], "."))
		}
		cur, ok = m[part]
		if !ok {
			return nil, fault.Validation("template variable %q is not defined", path)
		}
	}
	return cur, nil
}
