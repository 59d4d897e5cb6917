// Package memory provides an in-memory implementation of the lock interface
// for tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopflow/lock"
)

var _ lock.Locker = (*MemoryLocker)(nil)

// MemoryLocker is an in-memory Locker. Production deployments should use the
// Redis locker instead.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	holder    string
	expiresAt time.Time
}

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]*lockEntry),
	}
}

// Acquire acquires locks on the given keys, all or nothing.
func (l *MemoryLocker) Acquire(ctx context.Context, keys []string, ttl time.Duration) (lock.LockHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	now := time.Now()
	holder := uuid.New().String()

	// All keys must be free (or expired) before any is taken
	for _, key := range sorted {
		if entry, exists := l.locks[key]; exists {
			if now.Before(entry.expiresAt) {
				return nil, lock.ErrLockAcquisitionFailed
			}
		}
	}

	expiresAt := now.Add(ttl)
	for _, key := range sorted {
		l.locks[key] = &lockEntry{
			holder:    holder,
			expiresAt: expiresAt,
		}
	}

	return &memoryLockHandle{
		locker: l,
		keys:   sorted,
		holder: holder,
	}, nil
}

type memoryLockHandle struct {
	locker *MemoryLocker
	keys   []string
	holder string
}

// Extend extends the TTL of all held locks.
func (h *memoryLockHandle) Extend(ctx context.Context, ttl time.Duration) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	for _, key := range h.keys {
		if entry, exists := h.locker.locks[key]; exists && entry.holder == h.holder {
			entry.expiresAt = expiresAt
		} else {
			return lock.ErrLockNotHeld
		}
	}
	return nil
}

// Release releases all held locks.
func (h *memoryLockHandle) Release(ctx context.Context) error {
	h.locker.mu.Lock()
	defer h.locker.mu.Unlock()

	for _, key := range h.keys {
		if entry, exists := h.locker.locks[key]; exists && entry.holder == h.holder {
			delete(h.locker.locks, key)
		}
	}
	return nil
}

// Keys returns the locked keys.
func (h *memoryLockHandle) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}
