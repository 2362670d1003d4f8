package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua script for safe lock release (only owner can release)
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// SweepLock serializes change-feed sweeps for a tenant across process
// instances. Two pollers racing on the same watermark would dispatch the same
// payments twice; the lock keeps one sweep per tenant at a time, and the TTL
// frees it if the holder dies mid-sweep.
type SweepLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSweepLock creates a sweep lock factory with the given holder TTL.
func NewSweepLock(client *redis.Client, ttl time.Duration) *SweepLock {
	return &SweepLock{client: client, ttl: ttl}
}

// TryLock attempts to acquire the tenant's sweep lock without blocking.
func (l *SweepLock) TryLock(ctx context.Context, tenantName string) (func(), bool, error) {
	key := fmt.Sprintf("lock:sweep:%s", tenantName)
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire sweep lock for %s: %w", tenantName, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// Release outlives the sweep context so shutdown does not leak the
		// lock until the TTL expires.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		releaseLockScript.Run(releaseCtx, l.client, []string{key}, token)
	}
	return release, true, nil
}
