// Package handlers exposes the enforcement endpoints: building listing and
// detail, export streaming and tile serving.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accessgin "github.com/melt-b/accesskit/adapters/gin"
	"github.com/melt-b/accesskit/core"
)

func identityOrAbort(c *gin.Context) (core.Identity, bool) {
	id, ok := accessgin.CurrentIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return id, ok
}

func badRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

func forbidden(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code})
}

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

func serverErr(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code})
}
