package core

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"github.com/melt-b/accesskit/entitlements"
	"github.com/melt-b/accesskit/geo"
)

// CanAccessTile decides raster tile delivery for (dataset, layer, z, x, y).
// Coordinates are validated before any math or store round trip; out-of-grid
// values return geo.ErrInvalidTile so callers can answer with a client error
// distinct from a denial.
//
// Decision order, first match wins:
//  1. admin role
//  2. any DS-ALL grant on the dataset (full data access implies tiles)
//  3. any TILES grant on the dataset covering the layer with no region
//  4. any TILES grant on the dataset covering the layer whose region
//     intersects the tile's bounding box
//
// Anything else is a deny. A false return with nil error is a policy denial,
// not an availability problem.
func (s *Service) CanAccessTile(ctx context.Context, id Identity, datasetID int64, layer string, z, x, y int) (bool, error) {
	bbox, err := geo.TileBounds(z, x, y)
	if err != nil {
		return false, err
	}
	if id.IsAdmin() {
		return true, nil
	}

	ents, err := s.Entitlements(ctx, id.UserID)
	if err != nil {
		return false, err
	}

	allowed := tileDecision(ents, datasetID, layer, bbox, time.Now())
	if !allowed {
		s.log.WithFields(logrus.Fields{
			"user_id":    id.UserID,
			"dataset_id": datasetID,
			"layer":      layer,
			"z":          z, "x": x, "y": y,
		}).Debug("tile access denied")
	}
	return allowed, nil
}

// tileDecision is the pure half of the tile check. Expiry is re-checked here
// for the same defense-in-depth reason the filter compiler re-checks it.
func tileDecision(ents []entitlements.Entitlement, datasetID int64, layer string, bbox orb.Polygon, now time.Time) bool {
	for _, e := range ents {
		if e.DatasetID != datasetID || e.Expired(now) {
			continue
		}
		if e.Type == entitlements.TypeDSAll {
			return true
		}
	}
	for _, e := range ents {
		if e.DatasetID != datasetID || e.Expired(now) {
			continue
		}
		if e.Type != entitlements.TypeTiles || !e.CoversLayer(layer) {
			continue
		}
		if len(e.AOIRegion) == 0 {
			return true
		}
		if geo.Intersects(e.AOIRegion, bbox) {
			return true
		}
	}
	return false
}
