package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/quotation-api/pkg/metrics"
)

// MetricsMiddleware records request counts, latency and in-flight requests
// labelled by route pattern.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.InFlight.Inc()
		start := time.Now()
		c.Next()
		m.InFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
