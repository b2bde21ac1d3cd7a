package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profilegate/profilegate/internal/config"
	"github.com/profilegate/profilegate/internal/credentials"
	"github.com/profilegate/profilegate/internal/errors"
	"github.com/profilegate/profilegate/internal/logging"
	"github.com/profilegate/profilegate/internal/metrics"
	"github.com/profilegate/profilegate/internal/middleware"
	"github.com/profilegate/profilegate/internal/places"
	"github.com/profilegate/profilegate/internal/store"
	"github.com/profilegate/profilegate/internal/telegram"
)

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	config      config.ServerConfig
	apiConfig   config.APIConfig
	broker      *credentials.Broker
	upstream    UpstreamFactory
	places      places.Finder
	audit       store.AuditStore
	notifier    *telegram.Notifier
	metrics     *metrics.Metrics
	logger      *logging.Logger
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	tlsConfig   config.TLSConfig
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, apiCfg config.APIConfig, broker *credentials.Broker, factory UpstreamFactory, finder places.Finder, auditStore store.AuditStore, notifier *telegram.Notifier) *Server {
	gin.SetMode(gin.ReleaseMode)

	m := metrics.NewMetrics("profilegate")
	logger := logging.NewLogger()

	if auditStore == nil {
		auditStore = store.NewMemoryAuditStore()
	}

	// Initialize rate limiter from config with sane defaults
	requestsPerMinute := apiCfg.RateLimit.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1000
	}
	burst := apiCfg.RateLimit.Burst
	if burst <= 0 {
		burst = 100
	}
	rateLimiter := newIPRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst)

	server := &Server{
		router:      gin.New(),
		config:      cfg,
		apiConfig:   apiCfg,
		broker:      broker,
		upstream:    factory,
		places:      finder,
		audit:       auditStore,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		rateLimiter: rateLimiter,
		tlsConfig:   cfg.TLS,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(rateLimitMiddleware(rateLimiter))

	// Body size limit (1MB)
	server.router.Use(bodyLimitMiddleware(1 << 20))

	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))
	server.router.Use(middleware.AuditMiddleware(auditStore))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Get or generate correlation ID
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/health", s.handleHealth)

	authMiddleware := APIKeyAuth(s.apiConfig.Auth.APIKeys, s.apiConfig.Auth.HeaderName, s.logger)

	// OAuth endpoints
	oauthGroup := s.router.Group("")
	oauthGroup.Use(authMiddleware)
	{
		oauthGroup.GET("/auth-url", s.handleAuthURL)
		oauthGroup.POST("/callback", s.handleCallback)
	}

	// Account endpoints
	accountGroup := s.router.Group("")
	accountGroup.Use(authMiddleware)
	{
		accountGroup.POST("/list-accounts", s.handleListAccounts)
		accountGroup.POST("/create-location-group", s.handleCreateLocationGroup)
		accountGroup.POST("/list-groups", s.handleListGroups)
	}

	// Location endpoints
	locationGroup := s.router.Group("")
	locationGroup.Use(authMiddleware)
	{
		locationGroup.POST("/list-categories", s.handleListCategories)
		locationGroup.POST("/add-location", s.handleAddLocation)
		locationGroup.POST("/list-locations", s.handleListLocations)
		locationGroup.POST("/get-location-details", s.handleGetLocationDetails)
		locationGroup.POST("/delete-location", s.handleDeleteLocation)
		locationGroup.POST("/list-attributes", s.handleListAttributes)
	}

	// Verification endpoints
	verificationGroup := s.router.Group("")
	verificationGroup.Use(authMiddleware)
	{
		verificationGroup.POST("/get-verification-options", s.handleGetVerificationOptions)
		verificationGroup.POST("/request-verification", s.handleRequestVerification)
		verificationGroup.POST("/pending-verification", s.handlePendingVerification)
		verificationGroup.POST("/complete-verification", s.handleCompleteVerification)
	}

	// Place search endpoint - API-key based, no token bundle
	placeGroup := s.router.Group("")
	placeGroup.Use(authMiddleware)
	{
		placeGroup.POST("/get-place-id", s.handleGetPlaceID)
	}
}

// Run starts the HTTP or HTTPS server based on TLS configuration
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.tlsConfig.Enabled {
		return s.RunTLS()
	}

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	s.notifier.ServerStarted(addr)
	return s.httpServer.ListenAndServe()
}

// RunTLS starts the HTTPS server with TLS configuration
func (s *Server) RunTLS() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	s.logger.Info("starting HTTPS server", "addr", addr, "cert_file", s.tlsConfig.CertFile, "min_version", s.tlsConfig.MinVersion)

	srv, err := NewHTTPSServerWithConfig(addr, s.tlsConfig.CertFile, s.tlsConfig.KeyFile, s.tlsConfig.MinVersion, s.router)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	s.httpServer = srv

	s.notifier.ServerStarted(addr)
	return s.httpServer.ListenAndServeTLS("", "")
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The audit store closes only
// after in-flight handlers drain; a handler may still record events while
// the HTTP server is waiting on it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var errList []error

	if s.httpServer != nil {
		s.logger.Info("shutting down HTTP server")
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err.Error())
			errList = append(errList, &errors.ErrServerShutdown{Err: err})
		}
	}

	// Flush pending audit events
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			errList = append(errList, fmt.Errorf("audit store close: %w", err))
		}
	}

	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.notifier.ServerStopped()
	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
