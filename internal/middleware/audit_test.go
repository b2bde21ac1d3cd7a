package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/profilegate/profilegate/internal/logging"
	"github.com/profilegate/profilegate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuditRouter(auditStore store.AuditStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuditMiddleware(auditStore))
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/denied", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
	})
	router.GET("/broken", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	})
	return router
}

func recentEvents(t *testing.T, auditStore store.AuditStore) []*logging.AuditEvent {
	t.Helper()
	events, err := auditStore.Recent(10)
	require.NoError(t, err)
	return events
}

func TestAuditMiddlewareRecordsAccess(t *testing.T) {
	auditStore := store.NewMemoryAuditStore()
	router := setupAuditRouter(auditStore)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ok?limit=5", nil)
	req.Header.Set("User-Agent", "profilegate-test")
	router.ServeHTTP(w, req)

	events := recentEvents(t, auditStore)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, logging.APIAccess, event.EventType)
	assert.Equal(t, logging.StatusSuccess, event.Status)
	assert.Equal(t, "GET /ok", event.Action)
	assert.Equal(t, "/ok", event.Resource)
	assert.Equal(t, "limit=5", event.Details["query"])
	assert.Equal(t, http.StatusOK, event.Details["status"])
	assert.Equal(t, "profilegate-test", event.Details["user_agent"])
}

func TestAuditMiddlewareMarksAuthFailure(t *testing.T) {
	auditStore := store.NewMemoryAuditStore()
	router := setupAuditRouter(auditStore)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/denied", nil)
	router.ServeHTTP(w, req)

	events := recentEvents(t, auditStore)
	require.Len(t, events, 1)
	assert.Equal(t, logging.AuthFailure, events[0].EventType)
	assert.Equal(t, logging.StatusFailure, events[0].Status)
	assert.Equal(t, logging.SeverityWarning, events[0].Severity)
}

func TestAuditMiddlewareMarksClientError(t *testing.T) {
	auditStore := store.NewMemoryAuditStore()
	router := setupAuditRouter(auditStore)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/broken", nil)
	router.ServeHTTP(w, req)

	events := recentEvents(t, auditStore)
	require.Len(t, events, 1)
	assert.Equal(t, logging.APIAccess, events[0].EventType)
	assert.Equal(t, logging.StatusFailure, events[0].Status)
}

func TestAuditEventMiddlewareUsesResource(t *testing.T) {
	auditStore := store.NewMemoryAuditStore()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/get-location-details",
		AuditEvent(auditStore, logging.UpstreamCall, "locations.get"),
		func(c *gin.Context) {
			SetAuditResource(c, "locations/42")
			c.JSON(http.StatusOK, gin.H{})
		})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/get-location-details", nil)
	router.ServeHTTP(w, req)

	events := recentEvents(t, auditStore)
	require.Len(t, events, 1)
	assert.Equal(t, logging.UpstreamCall, events[0].EventType)
	assert.Equal(t, "locations.get", events[0].Action)
	assert.Equal(t, "locations/42", events[0].Resource)
}
