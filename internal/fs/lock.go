package fs

import (
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
)

// FileLockInterface defines the interface for file locking operations
type FileLockInterface interface {
	Lock() error
	TryLock() (bool, error)
	Unlock() error
}

// FileLock wraps github.com/gofrs/flock with logging
type FileLock struct {
	filePath string
	flock    *flock.Flock
}

// NewFileLock creates a new file lock for the specified path
func NewFileLock(filePath string) FileLockInterface {
	return &FileLock{
		filePath: filePath,
		flock:    flock.New(filePath),
	}
}

// OutputLockPath returns the lock file guarding writes to output
func OutputLockPath(output string) string {
	return output + ".lock"
}

// Lock acquires an exclusive lock on the file (blocking)
func (fl *FileLock) Lock() error {
	slog.Debug("attempting to acquire file lock", "file_path", fl.filePath)

	if err := fl.flock.Lock(); err != nil {
		slog.Error("failed to acquire file lock",
			"file_path", fl.filePath,
			"error", err)
		return err
	}

	slog.Debug("file lock acquired", "file_path", fl.filePath)
	return nil
}

// TryLock attempts to acquire an exclusive lock on the file (non-blocking)
// Returns true if lock was acquired, false if file is already locked
func (fl *FileLock) TryLock() (bool, error) {
	success, err := fl.flock.TryLock()
	if err != nil {
		slog.Error("error during try-lock attempt",
			"file_path", fl.filePath,
			"error", err)
		return false, err
	}

	if !success {
		slog.Debug("try-lock failed - file already locked", "file_path", fl.filePath)
	}
	return success, nil
}

// Unlock releases the file lock
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		slog.Error("failed to release file lock",
			"file_path", fl.filePath,
			"error", err)
		return err
	}

	slog.Debug("file lock released", "file_path", fl.filePath)
	return nil
}

// LockOutput takes the lock for output without waiting. It fails if another
// process is writing the same file.
func LockOutput(output string) (FileLockInterface, error) {
	lock := NewFileLock(OutputLockPath(output))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", output, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is being written by another process", output)
	}
	return lock, nil
}
