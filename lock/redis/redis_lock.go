// Package redis provides a Redis implementation of the lock interface for
// multi-node deployments.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"shopflow/lock"
)

var _ lock.Locker = (*RedisLocker)(nil)
var _ lock.LockHandle = (*redisLockHandle)(nil)

// Lua scripts guard extend and release so a holder only ever touches its own
// locks, never a lock that expired and was re-taken by someone else.
var (
	extendScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	releaseScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)
)

// RedisLocker implements distributed locking over SET NX keys.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

// Option is a functional option for configuring RedisLocker.
type Option func(*RedisLocker)

// WithPrefix sets the key prefix for locks.
func WithPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// NewRedisLocker creates a new Redis-based distributed locker.
func NewRedisLocker(client redis.Cmdable, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: "shopflow:lock:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire acquires locks on the given keys, all or nothing. Keys are taken in
// sorted order so two callers locking overlapping sets cannot deadlock; every
// lock carries a TTL so a crashed holder cannot block forever.
func (l *RedisLocker) Acquire(ctx context.Context, keys []string, ttl time.Duration) (lock.LockHandle, error) {
	if len(keys) == 0 {
		return nil, errors.New("no keys provided")
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	handle := &redisLockHandle{
		client: l.client,
		prefix: l.prefix,
		holder: uuid.New().String(),
	}

	for _, key := range sorted {
		ok, err := l.client.SetNX(ctx, l.prefix+key, handle.holder, ttl).Result()
		if err != nil {
			handle.Release(ctx)
			return nil, fmt.Errorf("%w: key %s: %v", lock.ErrLockAcquisitionFailed, key, err)
		}
		if !ok {
			handle.Release(ctx)
			return nil, fmt.Errorf("%w: key %s: held by another process", lock.ErrLockAcquisitionFailed, key)
		}
		handle.acquired = append(handle.acquired, key)
	}

	return handle, nil
}

// redisLockHandle tracks the keys one Acquire call took.
type redisLockHandle struct {
	client   redis.Cmdable
	prefix   string
	holder   string
	mu       sync.Mutex
	acquired []string
}

// Extend extends the TTL of all held locks.
func (h *redisLockHandle) Extend(ctx context.Context, ttl time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.acquired) == 0 {
		return lock.ErrLockNotHeld
	}

	var errs error
	for _, key := range h.acquired {
		n, err := extendScript.Run(ctx, h.client,
			[]string{h.prefix + key}, h.holder, ttl.Milliseconds()).Int()
		if err == nil && n == 0 {
			err = errors.New("lock not held or expired")
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%w: %s: %v", lock.ErrLockExtensionFailed, key, err))
		}
	}
	return errs
}

// Release releases all held locks, attempting every key even when some fail.
func (h *redisLockHandle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs error
	for i := len(h.acquired) - 1; i >= 0; i-- {
		key := h.acquired[i]
		if _, err := releaseScript.Run(ctx, h.client,
			[]string{h.prefix + key}, h.holder).Result(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%w: %s: %v", lock.ErrLockReleaseFailed, key, err))
		}
	}
	h.acquired = nil
	return errs
}

// Keys returns the keys that are locked.
func (h *redisLockHandle) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.acquired))
	copy(out, h.acquired)
	return out
}
