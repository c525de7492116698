package appdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is the held single-instance lock. Releasing it lets the next
// server start.
type Lock struct {
	file *os.File
}

// AcquireLock takes an exclusive lock on <root>/nero.lock, blocking
// until any previous instance releases it.
func AcquireLock(root string) (*Lock, error) {
	path := filepath.Join(root, "nero.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockLock(f.Fd()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := flockUnlock(l.file.Fd())
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("release instance lock: %w", unlockErr)
	}
	return closeErr
}
