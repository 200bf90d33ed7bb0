package memorystore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/melt-b/accesskit/entitlements"
)

func TestCache_PutGetDel(t *testing.T) {
	ctx := context.Background()
	c := NewEntitlementCache(time.Hour)
	defer c.Close()
	uid := uuid.New()

	if _, ok, err := c.Get(ctx, uid); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	ents := []entitlements.Entitlement{{ID: 1, Type: entitlements.TypeDSAll, DatasetID: 3}}
	if err := c.Put(ctx, uid, ents); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, uid)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("wrong snapshot: %+v", got)
	}

	if err := c.Del(ctx, uid); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, _ := c.Get(ctx, uid); ok {
		t.Fatal("expected miss after Del")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewEntitlementCache(10 * time.Millisecond)
	defer c.Close()
	uid := uuid.New()

	if err := c.Put(ctx, uid, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, uid); ok {
		t.Fatal("entry should have expired")
	}
}

func TestCache_Flush(t *testing.T) {
	ctx := context.Background()
	c := NewEntitlementCache(time.Hour)
	defer c.Close()
	u1, u2 := uuid.New(), uuid.New()
	_ = c.Put(ctx, u1, nil)
	_ = c.Put(ctx, u2, nil)

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok, _ := c.Get(ctx, u1); ok {
		t.Fatal("u1 should be gone after flush")
	}
	if _, ok, _ := c.Get(ctx, u2); ok {
		t.Fatal("u2 should be gone after flush")
	}
}

func TestCache_ConcurrentFlushAndReads(t *testing.T) {
	ctx := context.Background()
	c := NewEntitlementCache(time.Hour)
	defer c.Close()
	uid := uuid.New()
	_ = c.Put(ctx, uid, []entitlements.Entitlement{{ID: 1}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _, _ = c.Get(ctx, uid)
				_ = c.Put(ctx, uid, []entitlements.Entitlement{{ID: 1}})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			_ = c.Flush(ctx)
		}
	}()
	wg.Wait()
}

func TestCache_DefaultTTL(t *testing.T) {
	c := NewEntitlementCache(0)
	defer c.Close()
	if c.ttl != DefaultTTL {
		t.Fatalf("expected default TTL %v, got %v", DefaultTTL, c.ttl)
	}
}
