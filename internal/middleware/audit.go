package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profilegate/profilegate/internal/logging"
	"github.com/profilegate/profilegate/internal/store"
)

// AuditMiddleware creates a Gin middleware that records every API request
func AuditMiddleware(auditStore store.AuditStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)

		// Determine event type based on status code
		eventType := logging.APIAccess
		if c.Writer.Status() == 401 || c.Writer.Status() == 403 {
			eventType = logging.AuthFailure
		}

		event := logging.NewAuditEvent(eventType, c.Request.Method+" "+path, logging.StatusSuccess)
		event.IPAddress = c.ClientIP()
		event.Resource = path
		if c.Writer.Status() >= 400 {
			event.Status = logging.StatusFailure
			event.Severity = logging.SeverityWarning
		}

		event.Details = map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		// Save asynchronously to not block the request
		auditStore.SaveEventAsync(event)
	}
}

// AuditEvent creates a middleware that records a specific event type when
// the request succeeds.
func AuditEvent(auditStore store.AuditStore, eventType logging.AuditEventType, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		if c.Writer.Status() < 400 {
			event := logging.NewAuditEvent(eventType, action, logging.StatusSuccess)
			event.IPAddress = c.ClientIP()

			if resource, exists := c.Get("audit_resource"); exists {
				event.Resource = resource.(string)
			}

			auditStore.SaveEventAsync(event)
		}
	}
}

// SetAuditResource is a helper to set the resource for audit logging in handlers
func SetAuditResource(c *gin.Context, resource string) {
	c.Set("audit_resource", resource)
}
