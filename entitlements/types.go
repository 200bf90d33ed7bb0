// Package entitlements holds the grant model and the pure filter
// compilation that turns a user's grants into query-time access filters.
package entitlements

import (
	"time"

	"github.com/paulmach/orb"
)

// Type discriminates the four access models a grant can carry.
type Type string

const (
	// TypeDSAll grants unrestricted access to every row of a dataset.
	TypeDSAll Type = "DS-ALL"
	// TypeDSAOI grants access to rows whose geometry intersects an AOI polygon.
	TypeDSAOI Type = "DS-AOI"
	// TypeDSBld grants access to an explicit list of building identifiers.
	TypeDSBld Type = "DS-BLD"
	// TypeTiles grants access to raster tiles, optionally limited to an AOI
	// polygon and a set of tile layers. TILES grants never contribute row
	// access.
	TypeTiles Type = "TILES"
)

// DatasetRef is the minimal dataset descriptor attached to a grant when it is
// read from the store.
type DatasetRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	DataType string `json:"data_type,omitempty"`
}

// Entitlement is a single grant as read from the entitlement store. Records
// are owned by the provisioning side; this module only reads them. An expired
// grant is inert, never deleted.
type Entitlement struct {
	ID        int64       `json:"id"`
	Type      Type        `json:"type"`
	DatasetID int64       `json:"dataset_id"`
	Dataset   *DatasetRef `json:"dataset,omitempty"`

	// AOIRegion is set for DS-AOI grants and optionally for TILES grants
	// (nil on a TILES grant means full-dataset tile coverage).
	AOIRegion orb.Polygon `json:"aoi_region,omitempty"`

	// BuildingGIDs is meaningful only for DS-BLD grants.
	BuildingGIDs []string `json:"building_gids,omitempty"`

	// TileLayers is meaningful only for TILES grants; empty means all layers.
	TileLayers []string `json:"tile_layers,omitempty"`

	// DownloadFormats lists export formats this grant permits, e.g.
	// "csv", "geojson", "excel". Empty means view-only.
	DownloadFormats []string `json:"download_formats,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the grant is inert as of now.
func (e Entitlement) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// CoversLayer reports whether a TILES grant covers the named layer.
// An empty layer list covers everything; an empty request matches any grant.
func (e Entitlement) CoversLayer(layer string) bool {
	if layer == "" || len(e.TileLayers) == 0 {
		return true
	}
	for _, l := range e.TileLayers {
		if l == layer {
			return true
		}
	}
	return false
}
