package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/melt-b/accesskit/core"
)

// HandleBuildingsGET lists buildings visible to the caller. An empty result
// is the normal answer for a user with no grants; it carries no hint about
// what exists outside their scope.
func HandleBuildingsGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityOrAbort(c)
		if !ok {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("page_size", "100"))
		if page < 1 {
			page = 1
		}
		q := core.BuildingQuery{Limit: size, Offset: (page - 1) * size}
		if raw := c.Query("dataset_id"); raw != "" {
			ds, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				badRequest(c, "invalid_dataset_id")
				return
			}
			q.DatasetID = &ds
		}
		items, err := svc.ListBuildings(c.Request.Context(), id, q)
		if err != nil {
			serverErr(c, "failed_to_list_buildings")
			return
		}
		if items == nil {
			items = []core.Building{}
		}
		c.JSON(http.StatusOK, gin.H{"data": items, "page": page, "page_size": size})
	}
}
