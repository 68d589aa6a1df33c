package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"MovieCurator/internal/ports"
)

// FileLock is an advisory lock file shared by every process that curates into the same store.
type FileLock struct {
	path string
	lock *flock.Flock
}

var _ ports.RunLock = (*FileLock)(nil)

// NewFileLock prepares the lock file's directory; the lock is not taken yet.
func NewFileLock(path string) (*FileLock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &FileLock{path: path, lock: flock.New(path)}, nil
}

// TryLock takes the lock without blocking; false means another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	return l.path
}
