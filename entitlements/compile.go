package entitlements

import (
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// Compile folds a grant list into a FilterSet. Expired grants are skipped
// even though the cache layer should already have excluded them; expiry is
// enforced at both layers on purpose. The result is order-independent: every
// contribution is a set union.
func Compile(ents []Entitlement, now time.Time) FilterSet {
	return compile(ents, now, false)
}

// CompileDownload is the narrower, export-path compilation: a grant that
// carries no download formats is excluded from every channel, so map
// visibility never silently implies export permission.
func CompileDownload(ents []Entitlement, now time.Time) FilterSet {
	return compile(ents, now, true)
}

func compile(ents []Entitlement, now time.Time, downloadOnly bool) FilterSet {
	fs := FilterSet{
		WholeDatasets:    make(map[int64]struct{}),
		BuildingGIDs:     make(map[string]struct{}),
		Formats:          make(map[string]struct{}),
		BuildingDatasets: make(map[int64]struct{}),
	}
	for _, e := range ents {
		if e.Expired(now) {
			continue
		}
		if downloadOnly && len(e.DownloadFormats) == 0 {
			continue
		}
		switch e.Type {
		case TypeDSAll:
			fs.WholeDatasets[e.DatasetID] = struct{}{}
		case TypeDSAOI:
			if len(e.AOIRegion) > 0 {
				fs.Regions = append(fs.Regions, RegionFilter{DatasetID: e.DatasetID, Region: e.AOIRegion})
			}
		case TypeDSBld:
			if len(e.BuildingGIDs) > 0 {
				fs.BuildingDatasets[e.DatasetID] = struct{}{}
			}
			for _, gid := range e.BuildingGIDs {
				fs.BuildingGIDs[gid] = struct{}{}
			}
		case TypeTiles:
			// Tile grants are evaluated by the tile path; they contribute
			// nothing to row access.
		}
		for _, f := range e.DownloadFormats {
			fs.Formats[f] = struct{}{}
		}
	}
	// Region order must not depend on grant order; sort by dataset then by
	// the exterior ring's vertices, a total order, so shuffled input
	// compiles identically even for regions sharing a bounding box.
	sort.SliceStable(fs.Regions, func(i, j int) bool {
		return regionLess(fs.Regions[i], fs.Regions[j])
	})
	return fs
}

func regionLess(a, b RegionFilter) bool {
	if a.DatasetID != b.DatasetID {
		return a.DatasetID < b.DatasetID
	}
	var ar, br orb.Ring
	if len(a.Region) > 0 {
		ar = a.Region[0]
	}
	if len(b.Region) > 0 {
		br = b.Region[0]
	}
	for i := 0; i < len(ar) && i < len(br); i++ {
		if ar[i] != br[i] {
			return ar[i].Lon() < br[i].Lon() ||
				(ar[i].Lon() == br[i].Lon() && ar[i].Lat() < br[i].Lat())
		}
	}
	return len(ar) < len(br)
}
