package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPolicyLintValidRules(t *testing.T) {
	path := writeRules(t, "allow(file_read) in workspace=docs\nmax_tool_calls_per_message = 2 always\n")
	if err := runPolicyLint(policyLintCmd, []string{path}); err != nil {
		t.Errorf("runPolicyLint() error = %v", err)
	}
}

func TestPolicyLintBrokenRules(t *testing.T) {
	path := writeRules(t, "allow(file_read\nnot a rule at all\n")
	if err := runPolicyLint(policyLintCmd, []string{path}); err == nil {
		t.Error("runPolicyLint() accepted broken rules")
	}
}

func TestPolicyLintMissingFile(t *testing.T) {
	if err := runPolicyLint(policyLintCmd, []string{filepath.Join(t.TempDir(), "nope.txt")}); err == nil {
		t.Error("runPolicyLint() accepted a missing file")
	}
}
