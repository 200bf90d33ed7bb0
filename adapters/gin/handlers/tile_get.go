package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melt-b/accesskit/core"
	"github.com/melt-b/accesskit/geo"
)

// ErrTileNotFound is returned by TileStore when the tile image is absent.
var ErrTileNotFound = errors.New("tile not found")

// TileStore reads raster tile bytes from wherever the tiling pipeline put
// them. This module never writes tiles.
type TileStore interface {
	ReadTile(ctx context.Context, datasetID int64, layer string, z, x, y int) ([]byte, error)
}

// transparentPNG is the 1x1 placeholder served for legitimately-empty areas.
var transparentPNG = func() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// HandleTileGET serves `:dataset_id/:layer/:z/:x/:y`. This is the only
// tile-serving surface the module exposes; every tile goes through the
// entitlement check. Responses distinguish three things the map client needs
// to tell apart: bad coordinates (400), a policy denial (403), and an area
// with no imagery (200 with a transparent placeholder, so renderers do not
// show a hard failure for empty space).
func HandleTileGET(svc *core.Service, tiles TileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityOrAbort(c)
		if !ok {
			return
		}
		ds, err := strconv.ParseInt(c.Param("dataset_id"), 10, 64)
		if err != nil {
			badRequest(c, "invalid_dataset_id")
			return
		}
		layer := c.Param("layer")
		z, errZ := strconv.Atoi(c.Param("z"))
		x, errX := strconv.Atoi(c.Param("x"))
		y, errY := strconv.Atoi(c.Param("y"))
		if errZ != nil || errX != nil || errY != nil {
			badRequest(c, "invalid_tile_coordinates")
			return
		}

		allowed, err := svc.CanAccessTile(c.Request.Context(), id, ds, layer, z, x, y)
		if err != nil {
			if errors.Is(err, geo.ErrInvalidTile) {
				badRequest(c, "invalid_tile_coordinates")
				return
			}
			serverErr(c, "tile_check_failed")
			return
		}
		if !allowed {
			forbidden(c, "tile_access_denied")
			return
		}

		img, err := tiles.ReadTile(c.Request.Context(), ds, layer, z, x, y)
		if err != nil {
			if errors.Is(err, ErrTileNotFound) {
				c.Data(http.StatusOK, "image/png", transparentPNG)
				return
			}
			serverErr(c, "tile_read_failed")
			return
		}
		c.Data(http.StatusOK, "image/png", img)
	}
}
