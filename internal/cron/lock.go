package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/posync/pkg/instance"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 2 * time.Hour

// Lock guarantees at most one concurrent run of a tenant's sync.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockProvider returns the lock guarding a job. Jobs of the same scope share a lock key.
type LockProvider func(job Job) (Lock, error)

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// lockStore is a redisStore that also builds namespaced lock keys, as pkg/redis.Client does.
type lockStore interface {
	redisStore
	LockKey(env, databaseID string) string
}

// RedisLock implements Lock using Redis SETNX + TTL.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// RedisLocks hands out one RedisLock per job scope, keyed posync:lock:<env>:<scope>.
func RedisLocks(client lockStore, env string, ttl time.Duration) LockProvider {
	return func(job Job) (Lock, error) {
		lock, err := NewRedisLock(client, client.LockKey(env, ScopeOf(job)), ttl)
		if err != nil {
			return nil, err
		}
		return lock, nil
	}
}

// Key returns the redis key of the lock.
func (l *RedisLock) Key() string { return l.key }

// Acquire tries to own the lock for the configured TTL. The stored value names the
// holding instance so operators can tell who owns a stuck lock.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.GetID() + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
