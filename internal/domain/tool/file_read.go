package tool

import (
	"os"
	"path/filepath"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// maxReadChars caps the content returned by a single file_read call.
const maxReadChars = 200_000

// FileRead reads one text file.
type FileRead struct{}

func (*FileRead) Name() string        { return NameFileRead }
func (*FileRead) Description() string { return "Read text file content" }

func (*FileRead) InputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"path"},
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	}
}

func (*FileRead) Requirements() []Requirement {
	return []Requirement{{Permission: permission.FilesystemRead, PathScoped: true}}
}

func (*FileRead) Run(args map[string]any) (map[string]any, error) {
	path, err := filepath.Abs(stringArg(args, "path"))
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(raw)
	if len(content) > maxReadChars {
		content = content[:maxReadChars]
	}
	return map[string]any{"path": path, "content": content}, nil
}
