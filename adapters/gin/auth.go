// Package accessgin adapts the enforcement core to gin: bearer-token
// identity resolution plus handlers for the building, export and tile paths.
package accessgin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/melt-b/accesskit/core"
)

const identityKey = "accesskit.identity"

// AuthRequired verifies an HS256 bearer token and stores the resolved
// core.Identity on the context. Token issuance lives elsewhere; this adapter
// only needs `sub` (user uuid) and `role` claims.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		sub, _ := claims["sub"].(string)
		uid, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_subject"})
			return
		}
		role, _ := claims["role"].(string)
		c.Set(identityKey, core.Identity{UserID: uid, Role: role})
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// CurrentIdentity returns the identity resolved by AuthRequired.
func CurrentIdentity(c *gin.Context) (core.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return core.Identity{}, false
	}
	id, ok := v.(core.Identity)
	return id, ok
}
