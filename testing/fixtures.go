// Package testing provides in-memory fakes for testing applications that use
// accesskit, and for this module's own tests: an entitlement store with error
// injection, a building store that evaluates filter sets in memory, a tile
// store, and a bearer-token helper for the gin adapter.
package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/melt-b/accesskit/adapters/gin/handlers"
	"github.com/melt-b/accesskit/core"
	"github.com/melt-b/accesskit/entitlements"
	"github.com/melt-b/accesskit/geo"
)

// FakeEntitlementStore serves grants from a map and can be forced to fail to
// exercise fail-closed paths.
type FakeEntitlementStore struct {
	mu     sync.Mutex
	Grants map[uuid.UUID][]entitlements.Entitlement
	Err    error
	Calls  int
}

func NewFakeEntitlementStore() *FakeEntitlementStore {
	return &FakeEntitlementStore{Grants: make(map[uuid.UUID][]entitlements.Entitlement)}
}

// Grant appends a grant for the user.
func (s *FakeEntitlementStore) Grant(userID uuid.UUID, e entitlements.Entitlement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Grants[userID] = append(s.Grants[userID], e)
}

func (s *FakeEntitlementStore) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]entitlements.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	now := time.Now()
	var out []entitlements.Entitlement
	for _, e := range s.Grants[userID] {
		if !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

// FakeBuildingStore holds rows in memory and applies the scope with the same
// OR-of-channels predicate the SQL store compiles, using geo.Intersects for
// the spatial channel.
type FakeBuildingStore struct {
	mu    sync.Mutex
	Rows  []core.Building
	Lists int
}

func NewFakeBuildingStore(rows ...core.Building) *FakeBuildingStore {
	return &FakeBuildingStore{Rows: rows}
}

func (s *FakeBuildingStore) visible(b core.Building, scope core.Scope) bool {
	if scope.Unrestricted {
		return true
	}
	return scope.Filters.AllowsBuilding(b.DatasetID, b.GID, b.Geometry, geo.Intersects)
}

func (s *FakeBuildingStore) List(_ context.Context, q core.BuildingQuery, scope core.Scope) ([]core.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lists++
	if scope.DeniesAll() {
		return nil, nil
	}
	var out []core.Building
	for _, b := range s.Rows {
		if q.DatasetID != nil && b.DatasetID != *q.DatasetID {
			continue
		}
		if s.visible(b, scope) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GID < out[j].GID })
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *FakeBuildingStore) GetByGID(_ context.Context, datasetID int64, gid string, scope core.Scope) (*core.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope.DeniesAll() {
		return nil, nil
	}
	for _, b := range s.Rows {
		if b.DatasetID == datasetID && b.GID == gid && s.visible(b, scope) {
			row := b
			return &row, nil
		}
	}
	return nil, nil
}

func (s *FakeBuildingStore) Stream(ctx context.Context, datasetID int64, scope core.Scope, _ int, fn func(core.Building) error) error {
	s.mu.Lock()
	rows := make([]core.Building, len(s.Rows))
	copy(rows, s.Rows)
	s.mu.Unlock()
	if scope.DeniesAll() {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].GID < rows[j].GID })
	for _, b := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.DatasetID != datasetID || !s.visible(b, scope) {
			continue
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

// FakeTileStore serves tile bytes from a map keyed by coordinates.
type FakeTileStore struct {
	Tiles map[string][]byte
}

func NewFakeTileStore() *FakeTileStore {
	return &FakeTileStore{Tiles: make(map[string][]byte)}
}

func TileKey(datasetID int64, layer string, z, x, y int) string {
	return fmt.Sprintf("%d/%s/%d/%d/%d", datasetID, layer, z, x, y)
}

func (s *FakeTileStore) Put(datasetID int64, layer string, z, x, y int, data []byte) {
	s.Tiles[TileKey(datasetID, layer, z, x, y)] = data
}

// ReadTile returns the handlers package's not-found sentinel when no tile
// was stored for the key, matching what a real tile store reports.
func (s *FakeTileStore) ReadTile(_ context.Context, datasetID int64, layer string, z, x, y int) ([]byte, error) {
	if b, ok := s.Tiles[TileKey(datasetID, layer, z, x, y)]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("fake tile store: %w", handlers.ErrTileNotFound)
}

// SignTestToken issues an HS256 bearer token the gin adapter accepts.
func SignTestToken(secret []byte, userID uuid.UUID, role string) string {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	if err != nil {
		panic("sign test token: " + err.Error())
	}
	return signed
}
