package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melt-b/accesskit/core"
)

// HandleDownloadGET streams an export of one dataset. Format and dataset
// coverage are checked before the first row is read; a failure after
// streaming has begun can only truncate output, never widen it.
//
// CSV is encoded inline as the demonstration format; richer encoders
// (geojson, excel) plug in at the embedder level, the gate is identical.
func HandleDownloadGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityOrAbort(c)
		if !ok {
			return
		}
		ds, err := strconv.ParseInt(c.Query("dataset_id"), 10, 64)
		if err != nil {
			badRequest(c, "invalid_dataset_id")
			return
		}
		format := c.DefaultQuery("format", "csv")

		w := csv.NewWriter(c.Writer)
		wroteHeader := false
		err = svc.Export(c.Request.Context(), id, ds, format, func(b core.Building) error {
			if !wroteHeader {
				// Deferred until the gate has passed and a first row exists,
				// so a rejection can still answer with a JSON error.
				c.Header("Content-Type", "text/csv")
				c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="dataset_%d.csv"`, ds))
				if err := w.Write([]string{"gid", "dataset_id", "address", "average_heatloss", "reference_heatloss", "heatloss_difference"}); err != nil {
					return err
				}
				wroteHeader = true
			}
			return w.Write([]string{
				b.GID,
				strconv.FormatInt(b.DatasetID, 10),
				b.Address,
				strconv.FormatFloat(b.AverageHeatLoss, 'f', -1, 64),
				strconv.FormatFloat(b.ReferenceHeatLoss, 'f', -1, 64),
				strconv.FormatFloat(b.HeatLossDifference, 'f', -1, 64),
			})
		})
		if err != nil {
			switch {
			case errors.Is(err, core.ErrUnsupportedFormat):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unsupported_format"})
			case errors.Is(err, core.ErrDatasetNotCovered):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "dataset_not_covered"})
			default:
				// Headers may already be out; best effort.
				serverErr(c, "export_failed")
			}
			return
		}
		w.Flush()
	}
}
