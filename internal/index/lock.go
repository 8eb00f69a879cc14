package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the cross-process reindex lock inside the data dir.
const LockFileName = "reindex.lock"

// RunLock keeps two processes sharing a data dir from reindexing at once.
// A zero-value or nil RunLock never blocks.
type RunLock struct {
	fl *flock.Flock
}

// NewRunLock creates a lock in dataDir. An empty dataDir disables locking.
func NewRunLock(dataDir string) (*RunLock, error) {
	if dataDir == "" {
		return &RunLock{}, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &RunLock{fl: flock.New(filepath.Join(dataDir, LockFileName))}, nil
}

// TryLock takes the lock without blocking. It reports false when another
// process holds it.
func (l *RunLock) TryLock() (bool, error) {
	if l == nil || l.fl == nil {
		return true, nil
	}
	return l.fl.TryLock()
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Path returns the lock file path, or "" when locking is disabled.
func (l *RunLock) Path() string {
	if l == nil || l.fl == nil {
		return ""
	}
	return l.fl.Path()
}
