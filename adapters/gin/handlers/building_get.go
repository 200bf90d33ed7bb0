package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melt-b/accesskit/core"
)

// HandleBuildingGET serves a single building by dataset and gid. A row the
// caller may not see answers 404, identical to a row that does not exist.
func HandleBuildingGET(svc *core.Service) gin.HandlerFunc {
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
		gid := c.Param("gid")
		if gid == "" {
			badRequest(c, "missing_gid")
			return
		}
		b, err := svc.GetBuilding(c.Request.Context(), id, ds, gid)
		if err != nil {
			serverErr(c, "failed_to_get_building")
			return
		}
		if b == nil {
			notFound(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": b})
	}
}
