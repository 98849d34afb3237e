package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/activity-hub/backend/internal/observability"
)

// Metrics records request latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observability.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
