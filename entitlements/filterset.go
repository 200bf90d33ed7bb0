package entitlements

import "github.com/paulmach/orb"

// RegionFilter scopes an AOI polygon to the dataset its grant targets.
type RegionFilter struct {
	DatasetID int64
	Region    orb.Polygon
}

// FilterSet is the compiled, immutable access predicate derived from a user's
// currently-valid grants. It is pure data: safe to share across goroutines
// read-only, rebuilt from Compile on every evaluation cycle, never persisted.
//
// Row access is the OR of three channels: whole-dataset membership, AOI
// intersection, explicit building id. An empty FilterSet means no access, not
// "no restriction" — callers must treat Empty as an explicit deny and never
// translate it into an unfiltered query.
type FilterSet struct {
	WholeDatasets map[int64]struct{}
	Regions       []RegionFilter
	BuildingGIDs  map[string]struct{}
	Formats       map[string]struct{}

	// BuildingDatasets records which datasets the explicit-id grants were
	// issued on, so coverage checks stay dataset-scoped even though the gid
	// channel itself matches by id alone.
	BuildingDatasets map[int64]struct{}
}

// Empty reports whether no row-access channel is populated. Formats are
// deliberately ignored: a format with no rows still exports nothing.
func (fs FilterSet) Empty() bool {
	return len(fs.WholeDatasets) == 0 && len(fs.Regions) == 0 && len(fs.BuildingGIDs) == 0
}

// AllowsFormat reports whether the given export format was granted.
func (fs FilterSet) AllowsFormat(format string) bool {
	_, ok := fs.Formats[format]
	return ok
}

// CoversDataset reports whether at least one access channel touches the
// dataset. Used by the export path to reject requests for datasets the user
// holds no grant on, before any row I/O starts.
func (fs FilterSet) CoversDataset(datasetID int64) bool {
	if _, ok := fs.WholeDatasets[datasetID]; ok {
		return true
	}
	for _, rf := range fs.Regions {
		if rf.DatasetID == datasetID {
			return true
		}
	}
	_, ok := fs.BuildingDatasets[datasetID]
	return ok
}

// AllowsBuilding evaluates the row predicate in memory. intersects is the
// geometry capability (polygon/polygon test) supplied by the caller so the
// decision stays testable without a spatial database.
func (fs FilterSet) AllowsBuilding(datasetID int64, gid string, geom orb.Polygon, intersects func(a, b orb.Polygon) bool) bool {
	if _, ok := fs.WholeDatasets[datasetID]; ok {
		return true
	}
	if _, ok := fs.BuildingGIDs[gid]; ok {
		return true
	}
	for _, rf := range fs.Regions {
		if rf.DatasetID != datasetID {
			continue
		}
		if intersects(rf.Region, geom) {
			return true
		}
	}
	return false
}
