package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another instance holds the lock.
var ErrLockHeld = errors.New("lock already held")

// RefreshLock is a redis-backed mutual-exclusion guard. The specification
// cache refresh runs on every instance's schedule; the lock makes sure only
// one of them actually hits the database per cycle.
type RefreshLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*HeldLock, error)
	Release(ctx context.Context, lock *HeldLock) error
}

type HeldLock struct {
	Key        string
	Value      string
	AcquiredAt time.Time
}

type refreshLock struct {
	client *redis.Client
}

func NewRefreshLock(client *redis.Client) RefreshLock {
	return &refreshLock{client: client}
}

const (
	lockPrefix = "lock:"

	// Only the holder may delete its own lock.
	releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

func (r *refreshLock) Acquire(ctx context.Context, key string, ttl time.Duration) (*HeldLock, error) {
	lockKey := lockPrefix + key
	lockValue := uuid.New().String()

	ok, err := r.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", key, ErrLockHeld)
	}

	return &HeldLock{
		Key:        lockKey,
		Value:      lockValue,
		AcquiredAt: time.Now(),
	}, nil
}

func (r *refreshLock) Release(ctx context.Context, lock *HeldLock) error {
	result, err := r.client.Eval(ctx, releaseScript, []string{lock.Key}, lock.Value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lock.Key, err)
	}
	if n, ok := result.(int64); ok && n == 0 {
		return fmt.Errorf("lock %s not held or already released", lock.Key)
	}
	return nil
}
