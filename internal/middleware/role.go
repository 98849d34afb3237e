package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/response"
)

// RequireRole lets through only users holding one of roles. It must run after Auth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}
		name, _ := role.(string)
		if !grantsAny(models.Role(name), roles) {
			response.Forbidden(c, "Access denied")
			c.Abort()
			return
		}
		c.Next()
	}
}

func grantsAny(held models.Role, required []models.Role) bool {
	for _, r := range required {
		if held.Grants(r) {
			return true
		}
	}
	return false
}
