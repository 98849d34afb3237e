package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/activity-hub/backend/internal/models"
	"github.com/activity-hub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Auth returns a middleware that authenticates the bearer token and sets the
// user in context.
func Auth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}
		token, ok := BearerToken(header)
		if !ok {
			response.Unauthorized(c, "Invalid credentials")
			c.Abort()
			return
		}
		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "Invalid credentials")
			c.Abort()
			return
		}
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUserRole, string(user.Role))
		c.Set(ContextUserEmail, user.Email)
		c.Next()
	}
}
