package postgres

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/custodia-labs/audita-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock using PostgreSQL advisory locks.
//
// Limitations compared to the Redis lock:
// - Advisory locks are connection-scoped, not TTL-based
// - If the connection is lost, the lock is automatically released
// - The TTL parameter is ignored and Extend is a no-op
//
// Used as the upsert serialization fallback when Redis is unavailable.
type AdvisoryLock struct {
	db *DB
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db}
}

// hashLockName converts a lock name to the 64-bit key PostgreSQL advisory
// locks require. FNV-1a for consistent, well-distributed values.
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("audita:lock:" + name))
	return int64(h.Sum64())
}

// Acquire attempts to acquire a named advisory lock without blocking.
// The TTL parameter is ignored; the lock is held until explicitly
// released or the connection closes.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	lockID := hashLockName(name)

	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired)
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// Release releases a named advisory lock.
// Safe to call even if the lock is not held.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	lockID := hashLockName(name)

	var released bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockID).Scan(&released)
	if err != nil {
		return err
	}
	// released=false means the lock wasn't held, which is not an error
	return nil
}

// Extend is a no-op: PostgreSQL advisory locks don't expire.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
