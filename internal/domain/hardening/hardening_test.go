package hardening

import (
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	cmds := Build(`C:\apps\nero.exe`)

	if !strings.Contains(cmds.Add, RuleName) {
		t.Errorf("Add missing rule name: %s", cmds.Add)
	}
	if !strings.Contains(cmds.Add, `program="C:\apps\nero.exe"`) {
		t.Errorf("Add missing program path: %s", cmds.Add)
	}
	if !strings.Contains(cmds.Add, "dir=out action=block") {
		t.Errorf("Add must block outbound: %s", cmds.Add)
	}
	if !strings.Contains(cmds.Delete, "delete rule") || !strings.Contains(cmds.Delete, RuleName) {
		t.Errorf("Delete malformed: %s", cmds.Delete)
	}
	if !strings.Contains(cmds.Status, "show rule") {
		t.Errorf("Status malformed: %s", cmds.Status)
	}
}
