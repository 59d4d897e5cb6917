package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopflow/lock"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	h, err := locker.Acquire(ctx, []string{"inventory:order:t1:o1"}, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Held key cannot be taken again.
	if _, err := locker.Acquire(ctx, []string{"inventory:order:t1:o1"}, time.Minute); !errors.Is(err, lock.ErrLockAcquisitionFailed) {
		t.Errorf("expected acquisition failure, got %v", err)
	}

	if err := h.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	h2, err := locker.Acquire(ctx, []string{"inventory:order:t1:o1"}, time.Minute)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	h2.Release(ctx)
}

func TestMemoryLocker_AllOrNothing(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	h, err := locker.Acquire(ctx, []string{"b"}, time.Minute)
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	defer h.Release(ctx)

	// Multi-key acquisition with one held key takes nothing.
	if _, err := locker.Acquire(ctx, []string{"a", "b", "c"}, time.Minute); !errors.Is(err, lock.ErrLockAcquisitionFailed) {
		t.Fatalf("expected acquisition failure, got %v", err)
	}
	ha, err := locker.Acquire(ctx, []string{"a"}, time.Minute)
	if err != nil {
		t.Errorf("key a must still be free, got %v", err)
	} else {
		ha.Release(ctx)
	}
}

func TestMemoryLocker_ExpiredLockIsFree(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, []string{"k"}, -time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	h, err := locker.Acquire(ctx, []string{"k"}, time.Minute)
	if err != nil {
		t.Fatalf("expected expired lock to be reacquirable, got %v", err)
	}
	h.Release(ctx)
}

func TestMemoryLocker_ExtendAfterRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	h, err := locker.Acquire(ctx, []string{"k"}, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	h.Release(ctx)

	if err := h.Extend(ctx, time.Minute); !errors.Is(err, lock.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got %v", err)
	}
}
