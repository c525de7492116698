package worker

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Geo-fs/NeroAI/internal/domain/tool"
)

func runOnce(t *testing.T, input string) (Response, int) {
	t.Helper()
	var out bytes.Buffer
	code := Run(strings.NewReader(input), &out, tool.Builtin())
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v\n%s", err, out.String())
	}
	return resp, code
}

func TestRunExecutesTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	req, _ := json.Marshal(Request{
		Tool: tool.NameFileRead,
		Args: map[string]any{"path": path},
	})
	resp, code := runOnce(t, string(req))
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !resp.OK {
		t.Fatalf("OK = false, error = %s", resp.Error)
	}
	if resp.Result["content"] != "hello" {
		t.Errorf("content = %v, want hello", resp.Result["content"])
	}
}

func TestRunUnknownTool(t *testing.T) {
	resp, code := runOnce(t, `{"tool":"shell_exec","args":{}}`)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if resp.OK {
		t.Errorf("OK = true, want false")
	}
	if !strings.Contains(resp.Error, "shell_exec") {
		t.Errorf("error = %q, want it to name the tool", resp.Error)
	}
}

func TestRunMalformedRequest(t *testing.T) {
	resp, code := runOnce(t, `{not json`)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if resp.OK || !strings.Contains(resp.Error, "malformed request") {
		t.Errorf("response = %+v, want malformed request error", resp)
	}
}

func TestRunToolErrorStillEmitsResponse(t *testing.T) {
	req, _ := json.Marshal(Request{
		Tool: tool.NameFileRead,
		Args: map[string]any{"path": filepath.Join(t.TempDir(), "missing.txt")},
	})
	resp, code := runOnce(t, string(req))
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if resp.OK || resp.Error == "" {
		t.Errorf("response = %+v, want an error document", resp)
	}
}
