// Package core wires the entitlement cache, the entitlement store and the
// building store into the enforcement surface consumed by HTTP handlers:
// filter compilation, tile decisions, export gating and cache invalidation.
package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/melt-b/accesskit/entitlements"
)

// RoleAdmin bypasses all enforcement: admins see every row, every tile and
// every format. The bypass is explicit, not a missing check.
const RoleAdmin = "admin"

// Identity is the caller as resolved by the auth adapter.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// EntitlementStore reads a user's currently-valid grants, each with its
// dataset descriptor attached. Implementations must exclude expired grants.
type EntitlementStore interface {
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entitlements.Entitlement, error)
}

// EntitlementCache memoizes grant snapshots per user with a TTL. Get returns
// ok=false on miss or expiry. Implementations must be safe for concurrent
// readers and for Flush running concurrently with reads.
type EntitlementCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]entitlements.Entitlement, bool, error)
	Put(ctx context.Context, userID uuid.UUID, ents []entitlements.Entitlement) error
	Del(ctx context.Context, userID uuid.UUID) error
	Flush(ctx context.Context) error
}

// Service evaluates and enforces entitlements.
type Service struct {
	store     EntitlementStore
	cache     EntitlementCache
	buildings BuildingStore
	log       *logrus.Logger
}

// NewService builds a Service. cache may be nil (every lookup hits the
// store); buildings may be nil if the embedder only needs tile and format
// checks; log may be nil (discard).
func NewService(store EntitlementStore, cache EntitlementCache, buildings BuildingStore, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Service{store: store, cache: cache, buildings: buildings, log: log}
}

// Entitlements returns the user's non-expired grants, cache-through. A store
// failure propagates as an error and is never turned into an empty grant
// list: downstream reads "no grants" as "no access", and masking an outage
// as a legitimate denial would be wrong in both directions.
//
// Concurrent fills for the same user may race; the recompute is idempotent
// so the last Put simply wins.
func (s *Service) Entitlements(ctx context.Context, userID uuid.UUID) ([]entitlements.Entitlement, error) {
	if s.cache != nil {
		ents, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			// A broken cache degrades to a store read; it must not deny.
			s.log.WithError(err).WithField("user_id", userID).Warn("entitlement cache read failed")
		} else if ok {
			return ents, nil
		}
	}

	ents, err := s.store.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements for %s: %w", userID, err)
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, userID, ents); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("entitlement cache write failed")
		}
	}
	return ents, nil
}

// Filters compiles the user's grants into the general (view) FilterSet.
func (s *Service) Filters(ctx context.Context, userID uuid.UUID) (entitlements.FilterSet, error) {
	ents, err := s.Entitlements(ctx, userID)
	if err != nil {
		return entitlements.FilterSet{}, err
	}
	return entitlements.Compile(ents, time.Now()), nil
}

// DownloadFilters compiles the narrower export-mode FilterSet.
func (s *Service) DownloadFilters(ctx context.Context, userID uuid.UUID) (entitlements.FilterSet, error) {
	ents, err := s.Entitlements(ctx, userID)
	if err != nil {
		return entitlements.FilterSet{}, err
	}
	return entitlements.CompileDownload(ents, time.Now()), nil
}

// Scope resolves the access scope for tabular queries: unrestricted for
// admins, the compiled FilterSet otherwise.
func (s *Service) Scope(ctx context.Context, id Identity) (Scope, error) {
	if id.IsAdmin() {
		return Scope{Unrestricted: true}, nil
	}
	fs, err := s.Filters(ctx, id.UserID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Filters: fs}, nil
}

// ListBuildings lists rows visible to the caller. An empty scope returns no
// rows without touching the store.
func (s *Service) ListBuildings(ctx context.Context, id Identity, q BuildingQuery) ([]Building, error) {
	scope, err := s.Scope(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.DeniesAll() {
		return nil, nil
	}
	return s.buildings.List(ctx, q, scope)
}

// GetBuilding returns the row or nil when it is absent or invisible to the
// caller; the caller renders both as not-found.
func (s *Service) GetBuilding(ctx context.Context, id Identity, datasetID int64, gid string) (*Building, error) {
	scope, err := s.Scope(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.DeniesAll() {
		return nil, nil
	}
	return s.buildings.GetByGID(ctx, datasetID, gid, scope)
}

// CanExport reports whether the user holds any download-eligible grant for
// the format. Row scoping is separate: format eligibility alone does not
// widen which rows may be exported.
func (s *Service) CanExport(ctx context.Context, id Identity, format string) (bool, error) {
	if id.IsAdmin() {
		return true, nil
	}
	fs, err := s.DownloadFilters(ctx, id.UserID)
	if err != nil {
		return false, err
	}
	return fs.AllowsFormat(format), nil
}

// Invalidate drops one user's cached snapshot. Provisioning code calls it
// after the write it reflects has committed (invalidate-after-write), so a
// racing fill cannot repopulate the cache with pre-write data and have it
// survive.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	s.log.WithField("user_id", userID).Debug("invalidating entitlement cache entry")
	return s.cache.Del(ctx, userID)
}

// InvalidateAll flushes every cached snapshot. Used for mutations whose
// blast radius is not attributable to a single user, e.g. an edited AOI
// geometry. Recomputes are cheap; correctness of the access window wins over
// hit rate.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.log.Debug("flushing entitlement cache")
	return s.cache.Flush(ctx)
}
