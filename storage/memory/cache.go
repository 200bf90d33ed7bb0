// Package memorystore provides the in-memory entitlement cache.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/melt-b/accesskit/entitlements"
)

// DefaultTTL is deliberately shorter than the surrounding auth-token
// lifetime so a stale grant snapshot cannot outlive a session-equivalent
// window.
const DefaultTTL = 55 * time.Minute

// EntitlementCache is an in-memory core.EntitlementCache with TTL. Reads and
// the flush path share one mutex, so a flush running concurrently with reads
// cannot corrupt an in-flight Get.
type EntitlementCache struct {
	mu     sync.Mutex
	ttl    time.Duration
	data   map[uuid.UUID]item
	closed chan struct{}
}

type item struct {
	ents []entitlements.Entitlement
	exp  time.Time
}

// NewEntitlementCache creates the cache. If ttl <= 0, DefaultTTL is used.
// Starts a background goroutine that evicts expired entries every minute.
func NewEntitlementCache(ttl time.Duration) *EntitlementCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &EntitlementCache{ttl: ttl, data: make(map[uuid.UUID]item), closed: make(chan struct{})}
	go c.cleanupLoop()
	return c
}

func (c *EntitlementCache) Get(ctx context.Context, userID uuid.UUID) ([]entitlements.Entitlement, bool, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.data[userID]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(it.exp) {
		delete(c.data, userID)
		return nil, false, nil
	}
	return it.ents, true, nil
}

func (c *EntitlementCache) Put(ctx context.Context, userID uuid.UUID, ents []entitlements.Entitlement) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[userID] = item{ents: ents, exp: time.Now().Add(c.ttl)}
	return nil
}

func (c *EntitlementCache) Del(ctx context.Context, userID uuid.UUID) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	return nil
}

// Flush drops every entry. Used by InvalidateAll for mutations whose blast
// radius spans users.
func (c *EntitlementCache) Flush(ctx context.Context) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[uuid.UUID]item)
	return nil
}

// cleanupLoop removes expired entries every minute.
func (c *EntitlementCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.closed:
			return
		}
	}
}

func (c *EntitlementCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, v := range c.data {
		if now.After(v.exp) {
			delete(c.data, k)
		}
	}
}

// Close stops the background cleanup goroutine.
func (c *EntitlementCache) Close() error {
	close(c.closed)
	return nil
}
