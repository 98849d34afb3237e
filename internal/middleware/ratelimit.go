package middleware

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/pkg/response"
)

// Limiter decides whether another hit for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit limits requests per authenticated user under scope. It must run
// after Auth. Limiter failures let the request through.
func RateLimit(limiter Limiter, scope string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, ok := c.Get(ContextUserID)
		if !ok {
			c.Next()
			return
		}
		key := fmt.Sprintf("%s:%v", scope, userID)
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			response.TooManyRequests(c, "Too many requests, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
