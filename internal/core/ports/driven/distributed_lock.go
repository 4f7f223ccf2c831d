package driven

import (
	"context"
	"time"
)

// DistributedLock provides distributed locking for coordinating work across
// instances. The corpus service uses it to serialize concurrent upserts of
// the same document ID: last writer wins after serialization, never an
// interleaved merge.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was successfully acquired, false if already
	// held by another instance. The lock auto-expires after TTL.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Best-effort; implementations with TTL will auto-expire anyway.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock.
	// Returns error if the lock is not held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy
	Ping(ctx context.Context) error
}
