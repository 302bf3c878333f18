package middleware

import (
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records request count and latency per matched route.
// Unmatched paths are folded into one label to keep cardinality bounded.
func MetricsMiddleware(reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if reg == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := statusCodeToRange(c.Writer.Status())
		reg.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		reg.HTTPDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

// statusCodeToRange converts status code to a range string (2xx, 3xx, 4xx, 5xx)
func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
