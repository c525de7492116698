// Package appdir owns the application data directory layout and the
// single-instance lock. Everything the backend persists lives under one
// root: the database, the secret salt, per-session tool working
// directories, and the quarantine area.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvHome overrides the data root when set.
const EnvHome = "NERO_HOME"

// Dirs is the resolved directory layout.
type Dirs struct {
	// Root is the data root, typically <user-config-dir>/nero.
	Root string
	// ToolRuns holds per-session worker working directories.
	ToolRuns string
	// Quarantine holds copies of files read from outside granted scopes.
	Quarantine string
}

// DatabasePath is the SQLite file under the root.
func (d Dirs) DatabasePath() string {
	return filepath.Join(d.Root, "nero.db")
}

// SessionWorkDir is the worker cwd for one session.
func (d Dirs) SessionWorkDir(sessionID string) string {
	return filepath.Join(d.ToolRuns, sessionID)
}

// SessionQuarantineDir is the quarantine area for one session.
func (d Dirs) SessionQuarantineDir(sessionID string) string {
	return filepath.Join(d.Quarantine, sessionID)
}

// Resolve determines the data root: NERO_HOME when set, otherwise
// <os.UserConfigDir()>/nero. Directories are created on first use.
func Resolve() (Dirs, error) {
	root := os.Getenv(EnvHome)
	if root == "" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return Dirs{}, fmt.Errorf("resolve config dir: %w", err)
		}
		root = filepath.Join(cfg, "nero")
	}
	return At(root)
}

// At builds the layout under an explicit root, creating directories.
func At(root string) (Dirs, error) {
	d := Dirs{
		Root:       root,
		ToolRuns:   filepath.Join(root, "tool_runs"),
		Quarantine: filepath.Join(root, "quarantine"),
	}
	for _, dir := range []string{d.Root, d.ToolRuns, d.Quarantine} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Dirs{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return d, nil
}
