package policy

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseEffectRules(t *testing.T) {
	tests := []struct {
		name string
		line string
		want EffectRule
	}{
		{
			"bare allow",
			"allow(tool.file_read)",
			EffectRule{Effect: EffectAllow, Action: "tool.file_read"},
		},
		{
			"deny always",
			"deny(tool.file_write) always",
			EffectRule{Effect: EffectDeny, Action: "tool.file_write"},
		},
		{
			"unless confirm",
			"deny(tool.file_write) unless confirm",
			EffectRule{Effect: EffectDeny, Action: "tool.file_write", Condition: Condition{RequireConfirm: true}},
		},
		{
			"only in profile",
			"deny(web.search) only in profile=LockedDown",
			EffectRule{Effect: EffectDeny, Action: "web.search", Condition: Condition{Profile: "LockedDown"}},
		},
		{
			"in workspace",
			"allow(tool.file_write) in workspace=Dev",
			EffectRule{Effect: EffectAllow, Action: "tool.file_write", Condition: Condition{Workspace: "Dev"}},
		},
		{
			"uppercase keyword",
			"DENY(web.search)",
			EffectRule{Effect: EffectDeny, Action: "web.search"},
		},
		{
			"bare key=value condition",
			"allow(tool.file_read) profile=Dev",
			EffectRule{Effect: EffectAllow, Action: "tool.file_read", Condition: Condition{Profile: "Dev"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.line)
			if len(res.Errors) != 0 {
				t.Fatalf("Parse errors: %v", res.Errors)
			}
			if len(res.Effects) != 1 {
				t.Fatalf("got %d effect rules, want 1", len(res.Effects))
			}
			if !reflect.DeepEqual(res.Effects[0], tt.want) {
				t.Errorf("rule = %+v, want %+v", res.Effects[0], tt.want)
			}
		})
	}
}

func TestParseLimitRules(t *testing.T) {
	res := Parse("max_tool_calls_per_message = 2 in profile=LockedDown")
	if len(res.Errors) != 0 {
		t.Fatalf("Parse errors: %v", res.Errors)
	}
	if len(res.Limits) != 1 {
		t.Fatalf("got %d limit rules, want 1", len(res.Limits))
	}
	want := LimitRule{Key: "max_tool_calls_per_message", Value: 2, Condition: Condition{Profile: "LockedDown"}}
	if !reflect.DeepEqual(res.Limits[0], want) {
		t.Errorf("rule = %+v, want %+v", res.Limits[0], want)
	}
}

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	text := "# header comment\n\n   \nallow(tool.file_read)\n# trailing"
	res := Parse(text)
	if len(res.Errors) != 0 {
		t.Fatalf("Parse errors: %v", res.Errors)
	}
	if len(res.Effects) != 1 {
		t.Errorf("got %d effect rules, want 1", len(res.Effects))
	}
}

func TestParseErrorsCarryLineNumbers(t *testing.T) {
	text := "allow(tool.file_read)\nnot a rule at all\ndeny(x) when moon=full"
	res := Parse(text)
	if len(res.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(res.Errors), res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "Line 2:") {
		t.Errorf("first error %q does not name line 2", res.Errors[0])
	}
	if !strings.Contains(res.Errors[0], "unsupported rule syntax") {
		t.Errorf("first error %q missing syntax message", res.Errors[0])
	}
	if !strings.HasPrefix(res.Errors[1], "Line 3:") {
		t.Errorf("second error %q does not name line 3", res.Errors[1])
	}
	if !strings.Contains(res.Errors[1], "invalid condition") {
		t.Errorf("second error %q missing condition message", res.Errors[1])
	}
}

func TestEvaluateEffectDenyWins(t *testing.T) {
	res := Parse("allow(tool.file_write)\ndeny(tool.file_write) always")
	effect, decided := EvaluateEffect(res.Effects, "tool.file_write", "", "", false)
	if !decided || effect != EffectDeny {
		t.Errorf("EvaluateEffect = (%v, %v), want (deny, true)", effect, decided)
	}
}

func TestEvaluateEffectMatrix(t *testing.T) {
	text := strings.Join([]string{
		"deny(tool.file_write) unless confirm",
		"allow(web.search) in profile=Research",
		"deny(web.search) in workspace=Secure",
	}, "\n")
	res := Parse(text)
	if len(res.Errors) != 0 {
		t.Fatalf("Parse errors: %v", res.Errors)
	}

	tests := []struct {
		name      string
		action    string
		profile   string
		workspace string
		confirmed bool
		want      Effect
		decided   bool
	}{
		{"unless confirm holds only when confirmed", "tool.file_write", "", "", false, "", false},
		{"unless confirm matches once confirmed", "tool.file_write", "", "", true, EffectDeny, true},
		{"profile-gated allow", "web.search", "Research", "", false, EffectAllow, true},
		{"profile name case-insensitive", "web.search", "research", "", false, EffectAllow, true},
		{"other profile no decision", "web.search", "Writing", "", false, "", false},
		{"workspace deny beats profile allow", "web.search", "Research", "Secure", false, EffectDeny, true},
		{"action case-insensitive", "WEB.SEARCH", "Research", "", false, EffectAllow, true},
		{"unknown action no decision", "tool.file_read", "", "", false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			effect, decided := EvaluateEffect(res.Effects, tt.action, tt.profile, tt.workspace, tt.confirmed)
			if decided != tt.decided || effect != tt.want {
				t.Errorf("EvaluateEffect = (%q, %v), want (%q, %v)", effect, decided, tt.want, tt.decided)
			}
		})
	}
}

func TestApplyLimitOverrides(t *testing.T) {
	base := map[string]int{
		"max_tool_calls_per_message": 5,
		"max_runtime_seconds":        120,
	}
	res := Parse(strings.Join([]string{
		"max_tool_calls_per_message = 2 in profile=LockedDown",
		"max_runtime_seconds = 30 in workspace=Secure",
		"unknown_limit = 1",
	}, "\n"))
	if len(res.Errors) != 0 {
		t.Fatalf("Parse errors: %v", res.Errors)
	}

	got := ApplyLimitOverrides(base, res.Limits, "LockedDown", "", false)
	if got["max_tool_calls_per_message"] != 2 {
		t.Errorf("max_tool_calls_per_message = %d, want 2", got["max_tool_calls_per_message"])
	}
	if got["max_runtime_seconds"] != 120 {
		t.Errorf("max_runtime_seconds = %d, want 120 (workspace did not match)", got["max_runtime_seconds"])
	}
	if _, ok := got["unknown_limit"]; ok {
		t.Error("unknown key leaked into limits")
	}
	if base["max_tool_calls_per_message"] != 5 {
		t.Error("base map mutated")
	}
}

func TestEvaluateIsStable(t *testing.T) {
	text := "deny(tool.file_write) always\nallow(tool.file_read)"
	for i := 0; i < 3; i++ {
		res := Parse(text)
		effect, decided := EvaluateEffect(res.Effects, "tool.file_write", "p", "w", false)
		if !decided || effect != EffectDeny {
			t.Fatalf("iteration %d: EvaluateEffect = (%v, %v)", i, effect, decided)
		}
	}
}

func TestCacheReturnsSameResult(t *testing.T) {
	c := NewCache()
	text := "allow(tool.file_read)\nmax_runtime_seconds = 10"
	first := c.Parse(text)
	second := c.Parse(text)
	if first != second {
		t.Error("cache returned a different instance for identical text")
	}
	other := c.Parse(text + "\ndeny(web.search)")
	if other == first {
		t.Error("cache returned stale result for different text")
	}
}
