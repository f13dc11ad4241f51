package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storeadmin/api/internal/models"
)

type Guard interface {
	Authorize(ctx context.Context, actor *models.User, reqs []models.Requirement) (bool, error)
}

// RequirePermissions lets the request through only when the current user holds
// every listed (resource, action) pair.
func RequirePermissions(guard Guard, reqs ...models.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		var actor *models.User
		if user, ok := CurrentUser(c); ok {
			actor = &user
		}

		allowed, err := guard.Authorize(c.Request.Context(), actor, reqs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !allowed {
			if actor == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		c.Next()
	}
}
