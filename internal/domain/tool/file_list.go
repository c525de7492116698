package tool

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Geo-fs/NeroAI/internal/domain/permission"
)

// listableExts are the file extensions file_list reports.
var listableExts = map[string]struct{}{
	".txt": {}, ".md": {}, ".py": {}, ".go": {}, ".json": {},
	".yaml": {}, ".yml": {}, ".csv": {}, ".log": {},
}

// FileList lists text files under a folder, recursively, up to a cap.
type FileList struct{}

func (*FileList) Name() string        { return NameFileList }
func (*FileList) Description() string { return "List text files in a folder" }

func (*FileList) InputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"path"},
		"properties": map[string]any{
			"path":      map[string]any{"type": "string"},
			"max_files": map[string]any{"type": "integer"},
		},
	}
}

func (*FileList) Requirements() []Requirement {
	return []Requirement{{Permission: permission.FilesystemRead, PathScoped: true}}
}

func (*FileList) Run(args map[string]any) (map[string]any, error) {
	base, err := filepath.Abs(stringArg(args, "path"))
	if err != nil {
		return nil, err
	}
	maxFiles := intArg(args, "max_files", 25)

	files := make([]string, 0, maxFiles)
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := listableExts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		files = append(files, path)
		if len(files) >= maxFiles {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": base, "files": files}, nil
}
