package cel

import (
	"context"
	"strings"
	"testing"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return e
}

func TestEvaluateConditions(t *testing.T) {
	e := newTestEvaluator(t)
	vars := map[string]any{
		"count":  3,
		"name":   "report",
		"ready":  true,
		"files":  []any{"a.txt", "b.txt"},
		"nested": map[string]any{"depth": 2},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`vars.count > 2`, true},
		{`vars.count > 10`, false},
		{`vars.name == "report"`, true},
		{`vars.ready && vars.count < 5`, true},
		{`size(vars.files) == 2`, true},
		{`vars.nested.depth == 2`, true},
		{`"missing" in vars`, false},
		{`"count" in vars`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.expr, vars)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateNonBoolean(t *testing.T) {
	e := newTestEvaluator(t)
	_, err := e.Evaluate(context.Background(), `vars.count + 1`, map[string]any{"count": 1})
	if err == nil || !strings.Contains(err.Error(), "boolean") {
		t.Errorf("Evaluate() error = %v, want non-boolean rejection", err)
	}
}

func TestEvaluateNilVars(t *testing.T) {
	e := newTestEvaluator(t)
	got, err := e.Evaluate(context.Background(), `size(vars) == 0`, nil)
	if err != nil || !got {
		t.Errorf("Evaluate() = %v, %v; want true, nil", got, err)
	}
}

func TestValidateExpression(t *testing.T) {
	e := newTestEvaluator(t)

	if err := e.ValidateExpression(`vars.ok == true`); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := e.ValidateExpression(""); err == nil {
		t.Errorf("empty expression accepted")
	}
	if err := e.ValidateExpression(`vars.x ==`); err == nil {
		t.Errorf("malformed expression accepted")
	}
	if err := e.ValidateExpression(strings.Repeat("x", maxExpressionLength+1)); err == nil {
		t.Errorf("oversized expression accepted")
	}
	deep := strings.Repeat("(", maxNestingDepth+1) + "true" + strings.Repeat(")", maxNestingDepth+1)
	if err := e.ValidateExpression(deep); err == nil {
		t.Errorf("deeply nested expression accepted")
	}
}
