package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profilegate/profilegate/internal/logging"
)

// Middleware records request counters and latency for every route. The
// in-flight gauge brackets the handler, so /metrics shows forwarded calls
// still waiting on Google.
func Middleware(m *Metrics, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncHTTPRequestsInFlight()
		defer m.DecHTTPRequestsInFlight()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			// Unmatched routes keep their raw path
			endpoint = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.RecordHTTPRequest(endpoint, method, status)
		m.RecordRequestLatency(endpoint, method, status, time.Since(start).Seconds())

		for _, ginErr := range c.Errors {
			logger.ErrorWithContext(c.Request.Context(), "handler error",
				"endpoint", endpoint,
				"error", ginErr.Error(),
			)
		}
	}
}
