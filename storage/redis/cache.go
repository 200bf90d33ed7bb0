// Package redisstore provides the Redis-backed entitlement cache.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/melt-b/accesskit/entitlements"
)

// EntitlementCache stores one JSON snapshot of a user's grants per key with
// a server-side TTL, so expiry needs no sweeper.
type EntitlementCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewEntitlementCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *EntitlementCache {
	if keyPrefix == "" {
		keyPrefix = "accesskit:ent:"
	}
	if ttl <= 0 {
		ttl = 55 * time.Minute
	}
	return &EntitlementCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (c *EntitlementCache) key(userID uuid.UUID) string { return c.keyNS + userID.String() }

func (c *EntitlementCache) Get(ctx context.Context, userID uuid.UUID) ([]entitlements.Entitlement, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ents []entitlements.Entitlement
	if err := json.Unmarshal(val, &ents); err != nil {
		return nil, false, err
	}
	return ents, true, nil
}

func (c *EntitlementCache) Put(ctx context.Context, userID uuid.UUID, ents []entitlements.Entitlement) error {
	b, err := json.Marshal(ents)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(userID), b, c.ttl).Err()
}

func (c *EntitlementCache) Del(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}

// Flush deletes every key in this cache's namespace. SCAN keeps it safe on a
// shared Redis; only accesskit keys are touched.
func (c *EntitlementCache) Flush(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.keyNS+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 200 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.rdb.Del(ctx, keys...).Err()
	}
	return nil
}
