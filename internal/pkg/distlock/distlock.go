package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Extend when the lock is no longer owned.
var ErrNotHeld = errors.New("lock not held")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Locker hands out locks by key. It is the keyed registry a component holds
// so the backing store (process memory, Redis, Postgres) can be swapped.
type Locker interface {
	NewLock(key string) DistLock
}

// NewLocker returns the best available Locker.
// Redis is preferred for cross-host locking, then PostgreSQL advisory
// locks; with neither, locks are process-local.
func NewLocker(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Locker {
	switch {
	case redisClient != nil:
		return &RedisLocker{client: redisClient, ttl: ttl}
	case db != nil:
		return &PGLocker{db: db}
	default:
		return NewLocalLocker()
	}
}

// NewLock creates a distributed lock using the best available backend.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	return NewLocker(redisClient, db, ttl).NewLock(key)
}

// =============================================================================
// PostgreSQL Advisory Lock
// =============================================================================
// pg_try_advisory_lock / pg_advisory_unlock are session-scoped, so the lock
// and unlock must run on the same connection. The lock pins a *sql.Conn for
// its lifetime; a dropped connection releases the lock server-side.

// PGLocker creates advisory locks on db.
type PGLocker struct{ db *sql.DB }

// NewPGLocker returns a Locker backed by PostgreSQL advisory locks.
func NewPGLocker(db *sql.DB) *PGLocker { return &PGLocker{db: db} }

// NewLock implements Locker.
func (l *PGLocker) NewLock(key string) DistLock { return NewPGAdvisoryLock(l.db, key) }

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the pinned connection.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}

// =============================================================================
// Process-local registry
// =============================================================================

// LocalLocker is an in-memory keyed registry. Only one holder per key at a
// time within this process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker returns an empty registry.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// NewLock implements Locker.
func (l *LocalLocker) NewLock(key string) DistLock {
	return &localLock{registry: l, key: key}
}

// Held reports whether key is currently locked.
func (l *LocalLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

type localLock struct {
	registry *LocalLocker
	key      string
	owned    bool
}

func (l *localLock) Acquire(_ context.Context) (bool, error) {
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if _, busy := l.registry.held[l.key]; busy {
		return false, nil
	}
	l.registry.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *localLock) Release(_ context.Context) error {
	if !l.owned {
		return nil
	}
	l.registry.mu.Lock()
	delete(l.registry.held, l.key)
	l.registry.mu.Unlock()
	l.owned = false
	return nil
}
