// Package lockfile provides the cross-process mutual exclusion for the
// poll worker. Acquisition is non-blocking: a second instance finding the
// lock held aborts immediately instead of queueing, so scheduled
// invocations never pile up behind a slow cycle.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("lock already held")

// Acquire takes an exclusive non-blocking lock on the file at path,
// creating it if needed. It returns a release function that must be
// called on every exit path. ErrLocked means another instance is
// running; callers treat that as a graceful no-op, not a failure.
func Acquire(path string) (release func() error, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("acquiring lock on %s: %w", path, err)
	}

	return func() error {
		defer f.Close()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}
