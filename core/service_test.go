package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/melt-b/accesskit/core"
	"github.com/melt-b/accesskit/entitlements"
	memorystore "github.com/melt-b/accesskit/storage/memory"
	aktest "github.com/melt-b/accesskit/testing"
)

func region(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}
}

func newService(t *testing.T, store *aktest.FakeEntitlementStore, rows ...core.Building) (*core.Service, *memorystore.EntitlementCache, *aktest.FakeBuildingStore) {
	t.Helper()
	cache := memorystore.NewEntitlementCache(time.Hour)
	t.Cleanup(func() { _ = cache.Close() })
	buildings := aktest.NewFakeBuildingStore(rows...)
	return core.NewService(store, cache, buildings, nil), cache, buildings
}

func TestEntitlements_CacheThrough(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	store.Grant(uid, entitlements.Entitlement{ID: 1, Type: entitlements.TypeDSAll, DatasetID: 1})
	svc, _, _ := newService(t, store)

	if _, err := svc.Entitlements(ctx, uid); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := svc.Entitlements(ctx, uid); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if store.Calls != 1 {
		t.Fatalf("expected 1 store read with a warm cache, got %d", store.Calls)
	}
}

func TestEntitlements_StoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	store.Err = errors.New("connection refused")
	svc, _, _ := newService(t, store)

	ents, err := svc.Entitlements(ctx, uid)
	if err == nil {
		t.Fatal("store failure must propagate, not become an empty grant list")
	}
	if ents != nil {
		t.Fatal("no partial result on failure")
	}
	// The failure must not be cached either.
	store.Err = nil
	store.Grant(uid, entitlements.Entitlement{ID: 1, Type: entitlements.TypeDSAll, DatasetID: 1})
	got, err := svc.Entitlements(ctx, uid)
	if err != nil || len(got) != 1 {
		t.Fatalf("recovery fetch: got %d ents, err %v", len(got), err)
	}
}

func TestInvalidate_ReflectsNewGrantWithinTTL(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	svc, _, _ := newService(t, store)

	ents, err := svc.Entitlements(ctx, uid)
	if err != nil || len(ents) != 0 {
		t.Fatalf("initial: got %d ents, err %v", len(ents), err)
	}

	store.Grant(uid, entitlements.Entitlement{ID: 1, Type: entitlements.TypeDSAll, DatasetID: 1})
	if err := svc.Invalidate(ctx, uid); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	ents, err = svc.Entitlements(ctx, uid)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("expected the just-added grant after invalidation, got %d", len(ents))
	}
}

func TestInvalidateAll_Flushes(t *testing.T) {
	ctx := context.Background()
	u1, u2 := uuid.New(), uuid.New()
	store := aktest.NewFakeEntitlementStore()
	store.Grant(u1, entitlements.Entitlement{ID: 1, Type: entitlements.TypeDSAll, DatasetID: 1})
	store.Grant(u2, entitlements.Entitlement{ID: 2, Type: entitlements.TypeDSAll, DatasetID: 2})
	svc, _, _ := newService(t, store)

	_, _ = svc.Entitlements(ctx, u1)
	_, _ = svc.Entitlements(ctx, u2)
	if store.Calls != 2 {
		t.Fatalf("warmup reads: %d", store.Calls)
	}
	if err := svc.InvalidateAll(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	_, _ = svc.Entitlements(ctx, u1)
	_, _ = svc.Entitlements(ctx, u2)
	if store.Calls != 4 {
		t.Fatalf("expected both users recomputed after flush, got %d reads", store.Calls)
	}
}

func TestListBuildings_EmptyGrantsShortCircuits(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	svc, _, buildings := newService(t, store,
		core.Building{GID: "B1", DatasetID: 7},
	)

	rows, err := svc.ListBuildings(ctx, core.Identity{UserID: uid}, core.BuildingQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("no grants must mean zero rows, got %d", len(rows))
	}
	if buildings.Lists != 0 {
		t.Fatal("an empty filter set must never reach the building store")
	}
}

func TestGetBuilding_ExplicitIDGrant(t *testing.T) {
	// Scenario: one DS-BLD grant with {B1, B2} on dataset 7.
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	store.Grant(uid, entitlements.Entitlement{
		ID: 1, Type: entitlements.TypeDSBld, DatasetID: 7, BuildingGIDs: []string{"B1", "B2"},
	})
	svc, _, _ := newService(t, store,
		core.Building{GID: "B1", DatasetID: 7},
		core.Building{GID: "B3", DatasetID: 7},
	)
	id := core.Identity{UserID: uid}

	got, err := svc.GetBuilding(ctx, id, 7, "B1")
	if err != nil {
		t.Fatalf("get B1: %v", err)
	}
	if got == nil || got.GID != "B1" {
		t.Fatalf("expected B1, got %+v", got)
	}

	got, err = svc.GetBuilding(ctx, id, 7, "B3")
	if err != nil {
		t.Fatalf("get B3: %v", err)
	}
	if got != nil {
		t.Fatal("B3 is outside the grant and must look like not-found")
	}
}

func TestListBuildings_AOIGrantFiltersByGeometry(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	store.Grant(uid, entitlements.Entitlement{
		ID: 1, Type: entitlements.TypeDSAOI, DatasetID: 7, AOIRegion: region(0, 0, 1, 1),
	})
	svc, _, _ := newService(t, store,
		core.Building{GID: "IN", DatasetID: 7, Geometry: region(0.4, 0.4, 0.5, 0.5)},
		core.Building{GID: "OUT", DatasetID: 7, Geometry: region(5, 5, 6, 6)},
		core.Building{GID: "OTHER", DatasetID: 8, Geometry: region(0.4, 0.4, 0.5, 0.5)},
	)

	rows, err := svc.ListBuildings(ctx, core.Identity{UserID: uid}, core.BuildingQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].GID != "IN" {
		t.Fatalf("expected only the intersecting row, got %+v", rows)
	}
}

func TestListBuildings_AdminUnrestricted(t *testing.T) {
	ctx := context.Background()
	store := aktest.NewFakeEntitlementStore()
	svc, _, _ := newService(t, store,
		core.Building{GID: "B1", DatasetID: 7},
		core.Building{GID: "B2", DatasetID: 8},
	)
	admin := core.Identity{UserID: uuid.New(), Role: core.RoleAdmin}

	rows, err := svc.ListBuildings(ctx, admin, core.BuildingQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("admin sees everything, got %d rows", len(rows))
	}
	if store.Calls != 0 {
		t.Fatal("admin bypass should not consult the entitlement store")
	}
}

func TestCanExport(t *testing.T) {
	ctx := context.Background()
	uid := uuid.New()
	store := aktest.NewFakeEntitlementStore()
	store.Grant(uid, entitlements.Entitlement{
		ID: 1, Type: entitlements.TypeDSAOI, DatasetID: 7,
		AOIRegion: region(0, 0, 1, 1), DownloadFormats: []string{"csv"},
	})
	svc, _, _ := newService(t, store)

	ok, err := svc.CanExport(ctx, core.Identity{UserID: uid}, "csv")
	if err != nil || !ok {
		t.Fatalf("csv should be exportable: ok=%v err=%v", ok, err)
	}
	ok, err = svc.CanExport(ctx, core.Identity{UserID: uid}, "geojson")
	if err != nil || ok {
		t.Fatalf("geojson was never granted: ok=%v err=%v", ok, err)
	}
	ok, err = svc.CanExport(ctx, core.Identity{UserID: uuid.New(), Role: core.RoleAdmin}, "anything")
	if err != nil || !ok {
		t.Fatalf("admin exports anything: ok=%v err=%v", ok, err)
	}
}
