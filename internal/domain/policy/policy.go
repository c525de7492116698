// Package policy implements the policy-as-code DSL: a line-oriented text
// format of allow/deny rules and limit overrides with conditions on the
// active profile, active workspace, and explicit confirmation.
package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Effect is the outcome a matching effect rule contributes.
type Effect string

// Effect values.
const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Condition gates a rule. The zero value matches unconditionally.
type Condition struct {
	// Profile, when set, requires the active profile name to equal it
	// (case-insensitive).
	Profile string
	// Workspace, when set, requires the active workspace name to equal it
	// (case-insensitive).
	Workspace string
	// RequireConfirm requires the caller to have confirmed the action.
	RequireConfirm bool
}

// Matches reports whether the condition holds for the given identity.
func (c Condition) Matches(profile, workspace string, confirmed bool) bool {
	if c.RequireConfirm && !confirmed {
		return false
	}
	if c.Profile != "" && !strings.EqualFold(profile, c.Profile) {
		return false
	}
	if c.Workspace != "" && !strings.EqualFold(workspace, c.Workspace) {
		return false
	}
	return true
}

// EffectRule is one allow/deny line.
type EffectRule struct {
	Effect    Effect
	Action    string
	Condition Condition
}

// LimitRule overrides one numeric limit.
type LimitRule struct {
	Key       string
	Value     int
	Condition Condition
}

// ParseResult holds the rules and per-line errors from one parse. A
// policy with any errors is present but unusable; callers must not apply
// it partially.
type ParseResult struct {
	Effects []EffectRule
	Limits  []LimitRule
	Errors  []string
}

var (
	actionRe = regexp.MustCompile(`(?i)^(allow|deny)\(([^)]+)\)\s*(.*)$`)
	limitRe  = regexp.MustCompile(`^([a-zA-Z0-9_.]+)\s*=\s*([0-9]+)\s*(.*)$`)
)

// Parse reads policy text line by line. Blank lines and lines starting
// with # are skipped. Errors carry the 1-based line number and the
// offending text.
func Parse(text string) *ParseResult {
	res := &ParseResult{}
	for idx, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lineNo := idx + 1

		if m := actionRe.FindStringSubmatch(line); m != nil {
			cond, ok := parseCondition(m[3])
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("Line %d: invalid condition '%s'", lineNo, strings.TrimSpace(m[3])))
				continue
			}
			res.Effects = append(res.Effects, EffectRule{
				Effect:    Effect(strings.ToLower(m[1])),
				Action:    strings.TrimSpace(m[2]),
				Condition: cond,
			})
			continue
		}
		if m := limitRe.FindStringSubmatch(line); m != nil {
			value, err := strconv.Atoi(m[2])
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("Line %d: unsupported rule syntax '%s'", lineNo, line))
				continue
			}
			cond, ok := parseCondition(m[3])
			if !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("Line %d: invalid condition '%s'", lineNo, strings.TrimSpace(m[3])))
				continue
			}
			res.Limits = append(res.Limits, LimitRule{
				Key:       strings.TrimSpace(m[1]),
				Value:     value,
				Condition: cond,
			})
			continue
		}
		res.Errors = append(res.Errors, fmt.Sprintf("Line %d: unsupported rule syntax '%s'", lineNo, line))
	}
	return res
}

// parseCondition reads the optional tail of a rule:
//
//	(empty) | always | unless confirm | [only] in profile=NAME | [only] in workspace=NAME
//
// A tail it cannot read returns ok=false and the whole line is an error.
func parseCondition(tail string) (Condition, bool) {
	tail = strings.TrimSpace(tail)
	if tail == "" || strings.EqualFold(tail, "always") {
		return Condition{}, true
	}
	if strings.EqualFold(tail, "unless confirm") {
		return Condition{RequireConfirm: true}, true
	}
	lower := strings.ToLower(tail)
	if strings.HasPrefix(lower, "only in ") {
		tail = strings.TrimSpace(tail[len("only in "):])
	} else if strings.HasPrefix(lower, "in ") {
		tail = strings.TrimSpace(tail[len("in "):])
	}
	if key, value, found := strings.Cut(tail, "="); found {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "profile":
			return Condition{Profile: value}, true
		case "workspace":
			return Condition{Workspace: value}, true
		}
	}
	return Condition{}, false
}

// EvaluateEffect runs the effect rules for an action under the current
// identity. Deny wins over allow; a matching deny short-circuits. The
// second return is false when no rule matched and the caller's default
// applies. Action comparison is case-insensitive.
func EvaluateEffect(rules []EffectRule, action, profile, workspace string, confirmed bool) (Effect, bool) {
	var decision Effect
	decided := false
	for _, rule := range rules {
		if !strings.EqualFold(rule.Action, action) {
			continue
		}
		if !rule.Condition.Matches(profile, workspace, confirmed) {
			continue
		}
		if rule.Effect == EffectDeny {
			return EffectDeny, true
		}
		decision, decided = EffectAllow, true
	}
	return decision, decided
}

// ApplyLimitOverrides returns a copy of base with every limit rule whose
// condition holds and whose key exists in base applied. Unknown keys are
// ignored.
func ApplyLimitOverrides(base map[string]int, rules []LimitRule, profile, workspace string, confirmed bool) map[string]int {
	updated := make(map[string]int, len(base))
	for k, v := range base {
		updated[k] = v
	}
	for _, rule := range rules {
		if _, ok := updated[rule.Key]; !ok {
			continue
		}
		if rule.Condition.Matches(profile, workspace, confirmed) {
			updated[rule.Key] = rule.Value
		}
	}
	return updated
}
