// Package lock provides distributed locking for callers that need to
// serialize work outside the engine, such as background jobs processing the
// same order concurrently. The workflow engine itself never locks: row-level
// consistency belongs to the store.
package lock

import (
	"context"
	"errors"
	"time"
)

// Lock errors
var (
	// ErrLockAcquisitionFailed indicates lock acquisition failed
	ErrLockAcquisitionFailed = errors.New("lock acquisition failed")

	// ErrLockNotHeld indicates the lock is not held
	ErrLockNotHeld = errors.New("lock not held")

	// ErrLockExtensionFailed indicates lock extension failed
	ErrLockExtensionFailed = errors.New("lock extension failed")

	// ErrLockReleaseFailed indicates lock release failed
	ErrLockReleaseFailed = errors.New("lock release failed")
)

// Locker is the distributed lock interface.
// It provides methods to acquire locks on multiple keys atomically.
type Locker interface {
	// Acquire acquires locks on the given keys.
	// Keys are sorted alphabetically before acquisition to prevent deadlocks.
	// Returns a LockHandle for extending and releasing the locks, or
	// ErrLockAcquisitionFailed if any lock cannot be acquired.
	Acquire(ctx context.Context, keys []string, ttl time.Duration) (LockHandle, error)
}

// LockHandle represents a handle to acquired locks.
type LockHandle interface {
	// Extend extends the TTL of all held locks.
	Extend(ctx context.Context, ttl time.Duration) error

	// Release releases all held locks.
	// Attempts to release all locks even if some releases fail.
	Release(ctx context.Context) error

	// Keys returns the keys that are locked.
	Keys() []string
}
