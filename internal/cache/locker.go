package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when another holder keeps the lock past all retries.
// Redis failures are returned as plain errors instead.
var ErrLockBusy = errors.New("resource is locked by another operation")

// Unlock releases a lock obtained from Locker.
type Unlock func(ctx context.Context) error

// Locker hands out distributed mutual exclusion keyed by name.
type Locker interface {
	Lock(ctx context.Context, name string) (Unlock, error)
}

type redisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedisLocker builds a redsync backed Locker. expiry bounds how long a crashed holder blocks others.
func NewRedisLocker(rdb *redis.Client, expiry time.Duration) Locker {
	if expiry <= 0 {
		expiry = 8 * time.Second
	}
	return &redisLocker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		expiry: expiry,
	}
}

func (l *redisLocker) Lock(ctx context.Context, name string) (Unlock, error) {
	mutex := l.rs.NewMutex("lock:"+name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(8),
		redsync.WithRetryDelay(100*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isContention(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrLockBusy, name, err)
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}
		return nil
	}, nil
}

// isContention is true when the lock was held by someone else, as opposed to Redis being unreachable.
func isContention(err error) bool {
	var taken *redsync.ErrTaken
	var redisErr *redsync.RedisError
	switch {
	case errors.As(err, &taken):
		return true
	case errors.As(err, &redisErr):
		return false
	}
	return errors.Is(err, redsync.ErrFailed)
}
