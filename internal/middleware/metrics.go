package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/profile-service/pkg/metrics"
)

// Metrics reports request count and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
