package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when the lock is held by another operation.
var ErrLocked = errors.New("lock is held by another operation")

type Lock struct {
	file *flock.Flock
}

// Acquire obtains an exclusive filesystem lock without waiting.
func Acquire(path string) (*Lock, error) {
	return acquire(path, false)
}

// AcquireShared obtains a shared lock: any number of shared holders may
// coexist, but none while an exclusive holder exists.
func AcquireShared(path string) (*Lock, error) {
	return acquire(path, true)
}

func acquire(path string, shared bool) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	file := flock.New(path)
	var ok bool
	var err error
	if shared {
		ok, err = file.TryRLock()
	} else {
		ok, err = file.TryLock()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock: %s)", ErrLocked, path)
	}
	return &Lock{file: file}, nil
}

// Release frees the lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Unlock()
}

// ReleaseAndRemove frees the lock and deletes the lock file. Used for
// per-backup in-progress markers, which should not outlive the operation.
func (l *Lock) ReleaseAndRemove() error {
	if l == nil || l.file == nil {
		return nil
	}
	path := l.file.Path()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		_ = l.file.Unlock()
		return err
	}
	return l.file.Unlock()
}

// Held reports whether another operation currently holds the lock at path.
// A missing lock file is not held.
func Held(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	file := flock.New(path)
	ok, err := file.TryLock()
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return false, file.Unlock()
}
