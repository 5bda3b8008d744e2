package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Only the owner may delete a lock; a lock that expired and was taken by
// another instance must survive our release.
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker hands out short-lived Redis locks keyed by name. It implements
// payment.Locker.
type Locker struct {
	client redis.Cmdable
}

func NewLocker(client redis.Cmdable) *Locker {
	return &Locker{client: client}
}

// Acquire takes the lock without waiting. A lock already held elsewhere
// yields ErrLockAcquisitionFailed.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (payment.Lock, error) {
	lock := &distributedLock{
		client: l.client,
		key:    lockKey(key),
		value:  uuid.NewString(),
	}

	ok, err := l.client.SetNX(ctx, lock.key, lock.value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domainErrors.ErrLockAcquisitionFailed
	}
	return lock, nil
}

func lockKey(key string) string {
	return "lock:" + key
}

type distributedLock struct {
	client redis.Cmdable
	key    string
	value  string
}

func (l *distributedLock) Release(ctx context.Context) error {
	n, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}
