package tool

import (
	"os"
	"path/filepath"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// FileReadBatch reads several text files with a per-file size cap.
// Individual failures are reported per entry; the batch itself succeeds.
type FileReadBatch struct{}

func (*FileReadBatch) Name() string        { return NameFileReadBatch }
func (*FileReadBatch) Description() string { return "Read multiple text files with size limits" }

func (*FileReadBatch) InputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"paths"},
		"properties": map[string]any{
			"paths":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"max_chars_per_file": map[string]any{"type": "integer"},
		},
	}
}

func (*FileReadBatch) Requirements() []Requirement {
	return []Requirement{{Permission: permission.FilesystemRead, PathScoped: false}}
}

func (*FileReadBatch) Run(args map[string]any) (map[string]any, error) {
	maxChars := intArg(args, "max_chars_per_file", 5000)

	items := make([]any, 0, len(stringsArg(args, "paths")))
	for _, raw := range stringsArg(args, "paths") {
		path, err := filepath.Abs(raw)
		if err != nil {
			items = append(items, map[string]any{"path": raw, "error": err.Error()})
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			items = append(items, map[string]any{"path": path, "error": err.Error()})
			continue
		}
		text := string(content)
		if len(text) > maxChars {
			text = text[:maxChars]
		}
		items = append(items, map[string]any{"path": path, "content": text})
	}
	return map[string]any{"items": items}, nil
}
