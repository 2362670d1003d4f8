package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for monotonic watermark advancement: the stored instant never
// moves backwards, even when sweeps from different processes finish out of
// order.
var advanceWatermarkScript = redis.NewScript(`
	local current = redis.call("get", KEYS[1])
	if not current or tonumber(ARGV[1]) > tonumber(current) then
		redis.call("set", KEYS[1], ARGV[1])
	end
	return redis.call("get", KEYS[1])
`)

// WatermarkStore persists the per-tenant "since" instant of the change-feed
// sweep in Redis.
type WatermarkStore struct {
	client *redis.Client
}

// NewWatermarkStore creates a watermark store.
func NewWatermarkStore(client *redis.Client) *WatermarkStore {
	return &WatermarkStore{client: client}
}

func watermarkKey(tenantName string) string {
	return fmt.Sprintf("watermark:sweep:%s", tenantName)
}

// Since returns the stored watermark for the tenant, or fallback when none is
// stored. The returned instant never predates fallback: the lookback window
// bounds how far back a sweep may reach even after long downtime.
func (s *WatermarkStore) Since(ctx context.Context, tenantName string, fallback time.Time) (time.Time, error) {
	nanos, err := s.client.Get(ctx, watermarkKey(tenantName)).Int64()
	if err == redis.Nil {
		return fallback, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark for %s: %w", tenantName, err)
	}

	stored := time.Unix(0, nanos)
	if stored.Before(fallback) {
		return fallback, nil
	}
	return stored, nil
}

// Advance moves the watermark forward to the given instant; it never moves it
// back.
func (s *WatermarkStore) Advance(ctx context.Context, tenantName string, to time.Time) error {
	err := advanceWatermarkScript.Run(ctx, s.client,
		[]string{watermarkKey(tenantName)},
		to.UnixNano(),
	).Err()
	if err != nil {
		return fmt.Errorf("advance watermark for %s: %w", tenantName, err)
	}
	return nil
}
