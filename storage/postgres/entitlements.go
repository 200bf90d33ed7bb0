// Package postgres implements the entitlement and building stores on
// PostgreSQL/PostGIS via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/melt-b/accesskit/entitlements"
)

// EntitlementStore reads entitlement and assignment records.
type EntitlementStore struct {
	pg     *pgxpool.Pool
	schema string
}

func NewEntitlementStore(pg *pgxpool.Pool, schema string) *EntitlementStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "public"
	}
	return &EntitlementStore{pg: pg, schema: s}
}

func (s *EntitlementStore) table(name string) string { return s.schema + "." + name }

// ListActiveByUser returns the user's non-expired grants with dataset
// descriptors attached. AOI geometry comes back as GeoJSON and is decoded
// into an orb polygon.
func (s *EntitlementStore) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entitlements.Entitlement, error) {
	rows, err := s.pg.Query(ctx, `
SELECT e.id, e.type, e.dataset_id, d.name, d.data_type,
       ST_AsGeoJSON(e.aoi_geometry),
       e.building_gids, e.tile_layers, e.download_formats, e.expires_at
FROM `+s.table("user_entitlements")+` ue
JOIN `+s.table("entitlements")+` e ON e.id = ue.entitlement_id
JOIN `+s.table("datasets")+` d ON d.id = e.dataset_id
WHERE ue.user_id = $1
  AND (e.expires_at IS NULL OR e.expires_at > NOW())
ORDER BY e.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query entitlements: %w", err)
	}
	defer rows.Close()

	var out []entitlements.Entitlement
	for rows.Next() {
		var (
			e        entitlements.Entitlement
			ds       entitlements.DatasetRef
			dataType *string
			aoi      *string
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.DatasetID, &ds.Name, &dataType,
			&aoi, &e.BuildingGIDs, &e.TileLayers, &e.DownloadFormats, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		ds.ID = e.DatasetID
		if dataType != nil {
			ds.DataType = *dataType
		}
		e.Dataset = &ds
		if aoi != nil && *aoi != "" {
			poly, err := decodePolygon([]byte(*aoi))
			if err != nil {
				return nil, fmt.Errorf("entitlement %d aoi: %w", e.ID, err)
			}
			e.AOIRegion = poly
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entitlements: %w", err)
	}
	return out, nil
}

func decodePolygon(raw []byte) (orb.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("geometry is %T, want polygon", g.Geometry())
	}
	return poly, nil
}
