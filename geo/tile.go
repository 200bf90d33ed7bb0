// Package geo provides the pure spatial math the enforcement paths need:
// slippy-map tile bounds and polygon intersection. No I/O, no database.
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// Zoom bounds accepted by TileBounds. Anything outside is rejected before
// any trigonometry or store round trip happens.
const (
	MinZoom = 0
	MaxZoom = 22
)

// ErrInvalidTile is returned for zoom/column/row values outside the slippy
// map grid.
var ErrInvalidTile = errors.New("geo: invalid tile coordinates")

// TileBounds computes the geographic bounding box of slippy-map tile
// (z, x, y) as a closed counter-clockwise polygon: SW, SE, NE, NW, SW.
func TileBounds(z, x, y int) (orb.Polygon, error) {
	if z < MinZoom || z > MaxZoom {
		return nil, ErrInvalidTile
	}
	n := 1 << uint(z)
	if x < 0 || y < 0 || x >= n || y >= n {
		return nil, ErrInvalidTile
	}

	lonMin := float64(x)/float64(n)*360 - 180
	lonMax := float64(x+1)/float64(n)*360 - 180
	latMin := tileLat(y+1, n)
	latMax := tileLat(y, n)

	ring := orb.Ring{
		{lonMin, latMin},
		{lonMax, latMin},
		{lonMax, latMax},
		{lonMin, latMax},
		{lonMin, latMin},
	}
	return orb.Polygon{ring}, nil
}

// tileLat converts a tile row edge to degrees latitude (Web Mercator).
func tileLat(row, n int) float64 {
	rad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(row)/float64(n))))
	return rad * 180 / math.Pi
}
