package core

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/melt-b/accesskit/entitlements"
)

// Building is a single row of a building/thermal dataset as this module sees
// it. GID is the external building identifier used by DS-BLD grants.
type Building struct {
	GID       string      `json:"gid"`
	DatasetID int64       `json:"dataset_id"`
	Address   string      `json:"address,omitempty"`
	Geometry  orb.Polygon `json:"geometry,omitempty"`

	// Thermal attributes carried by the imagery datasets.
	AverageHeatLoss    float64 `json:"average_heatloss"`
	ReferenceHeatLoss  float64 `json:"reference_heatloss"`
	HeatLossDifference float64 `json:"heatloss_difference"`
	ConfidenceScore    float64 `json:"confidence,omitempty"`
	AnomalyCount       int     `json:"anomaly_count,omitempty"`
}

// BuildingQuery narrows a listing beyond the access scope.
type BuildingQuery struct {
	DatasetID *int64
	Limit     int
	Offset    int
}

// Scope is the access restriction handed to a BuildingStore. Unrestricted is
// set only for admins. A scope that is neither unrestricted nor carries any
// filter channel denies everything; stores must return zero rows for it
// without issuing a query.
type Scope struct {
	Unrestricted bool
	Filters      entitlements.FilterSet
}

// DeniesAll reports whether the scope can never match a row.
func (s Scope) DeniesAll() bool {
	return !s.Unrestricted && s.Filters.Empty()
}

// BuildingStore is the tabular storage contract. Implementations apply the
// scope as part of the query itself so a row outside the scope behaves
// exactly like a row that does not exist.
type BuildingStore interface {
	// List returns rows matching the query within the scope.
	List(ctx context.Context, q BuildingQuery, scope Scope) ([]Building, error)

	// GetByGID returns the row or nil when it is absent or out of scope;
	// the two cases are indistinguishable to the caller.
	GetByGID(ctx context.Context, datasetID int64, gid string, scope Scope) (*Building, error)

	// Stream iterates rows of one dataset in chunks of batchSize, invoking
	// fn per row. It stops on the first fn error or context cancellation.
	Stream(ctx context.Context, datasetID int64, scope Scope, batchSize int, fn func(Building) error) error
}
