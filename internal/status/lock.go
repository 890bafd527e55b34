package status

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const lockFileName = "run.lock"

// ErrLocked is returned when another live process holds the run lock.
var ErrLocked = errors.New("another run is in progress")

// RunLock is a PID lock file that keeps a second orchestrator from writing
// the same status table.
type RunLock struct {
	path string
}

// NewRunLock creates a lock manager for the given state directory.
func NewRunLock(stateDir string) *RunLock {
	return &RunLock{path: filepath.Join(stateDir, lockFileName)}
}

// Acquire takes the lock. A lock left behind by a dead process, or one whose
// content is not a PID, is reclaimed once.
func (l *RunLock) Acquire() error {
	for attempt := 0; attempt < 2; attempt++ {
		err := l.create()
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		pid, held, err := l.holder()
		if err != nil {
			return err
		}
		if held {
			return fmt.Errorf("%w (PID %d)", ErrLocked, pid)
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock file: %w", err)
		}
	}
	return fmt.Errorf("%w: lock taken by another process during retry", ErrLocked)
}

// create atomically writes our PID into a new lock file.
func (l *RunLock) create() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", writeErr)
	}
	return nil
}

// holder reads the lock file and reports whether its PID is alive.
func (l *RunLock) holder() (int, bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read existing lock file: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		// created but the PID not yet written
		return 0, true, nil
	}
	pid, err := strconv.Atoi(content)
	if err != nil {
		return 0, false, nil
	}
	return pid, processExists(pid), nil
}

// Release removes the lock file. Releasing an unheld lock is not an error.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked reports whether a live process holds the lock.
func (l *RunLock) IsLocked() (bool, error) {
	_, held, err := l.holder()
	return held, err
}
