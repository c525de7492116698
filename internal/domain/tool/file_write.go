package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// FileWrite writes one text file. Unless the caller confirms, an
// existing file (or preview_only=true) yields a diff preview instead of
// a write, so the user sees the change before it lands.
type FileWrite struct{}

func (*FileWrite) Name() string        { return NameFileWrite }
func (*FileWrite) Description() string { return "Write text file content" }

func (*FileWrite) InputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"path", "content"},
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
			"confirm": map[string]any{"type": "boolean"},
		},
	}
}

func (*FileWrite) Requirements() []Requirement {
	return []Requirement{{Permission: permission.FilesystemWrite, PathScoped: true}}
}

func (*FileWrite) Run(args map[string]any) (map[string]any, error) {
	path, err := filepath.Abs(stringArg(args, "path"))
	if err != nil {
		return nil, err
	}
	content := stringArg(args, "content")
	confirm := boolArg(args, "confirm")
	previewOnly := boolArg(args, "preview_only")

	prior := ""
	exists := false
	if raw, err := os.ReadFile(path); err == nil {
		prior = string(raw)
		exists = true
	}
	diff := unifiedDiff(path, prior, content)

	if previewOnly || (exists && !confirm) {
		return map[string]any{
			"path":                  path,
			"preview_diff":          diff,
			"requires_confirmation": true,
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return map[string]any{
		"path":          path,
		"written_chars": len(content),
		"preview_diff":  diff,
	}, nil
}

// unifiedDiff renders a unified-style diff between the prior and new
// content. Line matching is a plain LCS; inputs are small text files so
// the quadratic table is fine.
func unifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}
	a := strings.Split(before, "\n")
	b := strings.Split(after, "\n")

	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			sb.WriteString(" " + a[i] + "\n")
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			sb.WriteString("-" + a[i] + "\n")
			i++
		default:
			sb.WriteString("+" + b[j] + "\n")
			j++
		}
	}
	for ; i < len(a); i++ {
		sb.WriteString("-" + a[i] + "\n")
	}
	for ; j < len(b); j++ {
		sb.WriteString("+" + b[j] + "\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
