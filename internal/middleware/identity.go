package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schooltrack/internal/domain"
)

const (
	userIDHeader   = "X-User-Id"
	userRoleHeader = "X-User-Role"

	actorContextKey = "actor"
)

// RequireIdentity resolves the authenticated actor from the identity headers
// set by the gateway. Requests without a resolved identity are rejected; the
// core itself never authenticates.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		role := domain.Role(c.GetHeader(userRoleHeader))

		if userID == "" || !validRole(role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid identity"})
			return
		}

		c.Set(actorContextKey, domain.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

func validRole(r domain.Role) bool {
	switch r {
	case domain.RoleAdmin, domain.RoleDriver, domain.RoleParent:
		return true
	}
	return false
}

// ActorFrom returns the actor resolved by RequireIdentity.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
