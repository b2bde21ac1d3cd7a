package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profilegate/profilegate/internal/credentials"
	"github.com/profilegate/profilegate/internal/errors"
	"github.com/profilegate/profilegate/internal/logging"
	"github.com/profilegate/profilegate/internal/upstream"
	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
)

// respondError translates a failure into the uniform {error} body. Place
// lookups carry their own status codes; everything else, including token
// exchange and forwarded upstream failures, is a 400.
func (s *Server) respondError(c *gin.Context, err error) {
	endpoint := c.FullPath()
	s.logger.ErrorWithContext(c.Request.Context(), "request failed",
		"endpoint", endpoint,
		"error", err.Error(),
	)

	var (
		noMatch *errors.ErrNoPlaceMatch
		lookup  *errors.ErrPlaceLookup
	)
	switch {
	case stderrors.As(err, &noMatch):
		s.metrics.RecordError("no_place_match", endpoint, c.Request.Method)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case stderrors.As(err, &lookup):
		s.metrics.RecordError("place_lookup", endpoint, c.Request.Method)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		s.metrics.RecordError(upstreamErrorType(err), endpoint, c.Request.Method)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// upstreamErrorType labels a forwarded failure by the Google status it
// carries, so credential and permission problems are distinguishable on
// the errors counter.
func upstreamErrorType(err error) string {
	switch {
	case upstream.IsUnauthorized(err):
		return "upstream_unauthorized"
	case upstream.IsPermissionDenied(err):
		return "upstream_permission_denied"
	case upstream.IsNotFound(err):
		return "upstream_not_found"
	default:
		return "upstream_error"
	}
}

// clientFor builds the per-request upstream client from the caller's
// token bundle.
func (s *Server) clientFor(c *gin.Context, bundle *credentials.Bundle) (Upstream, bool) {
	client, err := s.upstream(c.Request.Context(), bundle)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return client, true
}

// recordUpstream records metrics, audit and alerts for one forwarded call.
func (s *Server) recordUpstream(c *gin.Context, operation, resource string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		s.notifier.UpstreamFailure(operation, err)
	}
	s.metrics.RecordUpstreamCall(operation, status, time.Since(start).Seconds())

	event := logging.NewAuditEvent(logging.UpstreamCall, operation, logging.StatusSuccess)
	event.IPAddress = c.ClientIP()
	event.Resource = resource
	if err != nil {
		event.WithError(err.Error())
	}
	s.audit.SaveEventAsync(event)
}

// handleAuthURL returns the Google consent URL for the configured client.
func (s *Server) handleAuthURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": s.broker.AuthURL()})
}

// CallbackRequest carries the authorization code from the OAuth redirect.
type CallbackRequest struct {
	Code string `json:"code" binding:"required"`
}

// handleCallback exchanges an authorization code for a token bundle. The
// bundle goes back to the caller; nothing is stored server-side.
func (s *Server) handleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bundle, err := s.broker.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		s.metrics.RecordTokenExchange("error")
		s.audit.SaveEventAsync(logging.NewAuditEvent(logging.AuthExchange, "token exchange", logging.StatusFailure).
			WithIPAddress(c.ClientIP()).
			WithError(err.Error()))
		s.respondError(c, err)
		return
	}

	s.metrics.RecordTokenExchange("success")
	s.audit.SaveEventAsync(logging.NewAuditEvent(logging.AuthExchange, "token exchange", logging.StatusSuccess).
		WithIPAddress(c.ClientIP()))

	c.JSON(http.StatusOK, gin.H{"tokens": bundle})
}

// TokensRequest is the minimal body for forwarded operations that need
// nothing beyond the caller's credentials.
type TokensRequest struct {
	Tokens *credentials.Bundle `json:"tokens" binding:"required"`
}

// handleListAccounts returns every account the caller can access.
func (s *Server) handleListAccounts(c *gin.Context) {
	var req TokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	accounts, err := client.ListAccounts(c.Request.Context())
	s.recordUpstream(c, "accounts.list", "accounts", start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if accounts == nil {
		accounts = []*mybusinessaccountmanagement.Account{}
	}

	c.JSON(http.StatusOK, accounts)
}

// CreateLocationGroupRequest names the group to create.
type CreateLocationGroupRequest struct {
	GroupName string              `json:"groupName" binding:"required"`
	Tokens    *credentials.Bundle `json:"tokens" binding:"required"`
}

// handleCreateLocationGroup creates a location group under the configured
// owner account.
func (s *Server) handleCreateLocationGroup(c *gin.Context) {
	var req CreateLocationGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	account, err := client.CreateLocationGroup(c.Request.Context(), req.GroupName)
	s.recordUpstream(c, "accounts.create", req.GroupName, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// handleListGroups returns the caller's accounts filtered to location
// groups. The result is always a subset of what /list-accounts returns.
func (s *Server) handleListGroups(c *gin.Context) {
	var req TokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	groups, err := client.ListLocationGroups(c.Request.Context())
	s.recordUpstream(c, "accounts.list", "accounts", start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if groups == nil {
		groups = []*mybusinessaccountmanagement.Account{}
	}

	c.JSON(http.StatusOK, groups)
}

// ListCategoriesRequest carries the free-text category filter.
type ListCategoriesRequest struct {
	Tokens *credentials.Bundle `json:"tokens" binding:"required"`
	Filter string              `json:"filter"`
}

// handleListCategories returns business categories matching the filter.
func (s *Server) handleListCategories(c *gin.Context) {
	var req ListCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	categories, err := client.ListCategories(c.Request.Context(), req.Filter)
	s.recordUpstream(c, "categories.list", req.Filter, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if categories == nil {
		categories = []*mybusinessbusinessinformation.Category{}
	}

	c.JSON(http.StatusOK, categories)
}

// AddLocationRequest carries the caller-supplied location payload and an
// optional target group.
type AddLocationRequest struct {
	Location *mybusinessbusinessinformation.Location `json:"location" binding:"required"`
	GroupID  string                                  `json:"groupId"`
	Tokens   *credentials.Bundle                     `json:"tokens" binding:"required"`
}

// handleAddLocation creates a location from the request payload.
func (s *Server) handleAddLocation(c *gin.Context) {
	var req AddLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	location, err := client.CreateLocation(c.Request.Context(), req.GroupID, req.Location)
	s.recordUpstream(c, "locations.create", req.Location.Title, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, location)
}

// ListLocationsRequest names the group to list.
type ListLocationsRequest struct {
	GroupID string              `json:"groupId"`
	Tokens  *credentials.Bundle `json:"tokens" binding:"required"`
}

// handleListLocations lists the locations in a group.
func (s *Server) handleListLocations(c *gin.Context) {
	var req ListLocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	locations, err := client.ListLocations(c.Request.Context(), req.GroupID)
	s.recordUpstream(c, "locations.list", req.GroupID, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, locations)
}

// LocationRequest names a single location.
type LocationRequest struct {
	LocationID string              `json:"locationId" binding:"required"`
	Tokens     *credentials.Bundle `json:"tokens" binding:"required"`
}

// handleGetLocationDetails fetches one location and augments it with a
// derived Google Maps URL. The generated Location type has its own JSON
// marshaller, so the extra field is spliced in through a map.
func (s *Server) handleGetLocationDetails(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	location, err := client.GetLocation(c.Request.Context(), req.LocationID)
	s.recordUpstream(c, "locations.get", req.LocationID, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	body, err := locationWithMapsURL(location)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, body)
}

func locationWithMapsURL(location *mybusinessbusinessinformation.Location) (map[string]interface{}, error) {
	raw, err := json.Marshal(location)
	if err != nil {
		return nil, err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body["googleMapsUrl"] = upstream.MapsURL(location)
	return body, nil
}

// handleDeleteLocation removes a location.
func (s *Server) handleDeleteLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	err := client.DeleteLocation(c.Request.Context(), req.LocationID)
	s.recordUpstream(c, "locations.delete", req.LocationID, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "location deleted"})
}

// handleListAttributes returns the attribute metadata catalogue.
func (s *Server) handleListAttributes(c *gin.Context) {
	var req TokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	attributes, err := client.ListAttributes(c.Request.Context())
	s.recordUpstream(c, "attributes.list", "attributes", start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, attributes)
}

// handleGetVerificationOptions returns the verification methods available
// for a location.
func (s *Server) handleGetVerificationOptions(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	options, err := client.FetchVerificationOptions(c.Request.Context(), req.LocationID)
	s.recordUpstream(c, "verifications.fetchOptions", req.LocationID, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, options)
}

// RequestVerificationRequest optionally overrides the configured method
// and SMS number.
type RequestVerificationRequest struct {
	LocationID  string              `json:"locationId" binding:"required"`
	Method      string              `json:"method"`
	PhoneNumber string              `json:"phoneNumber"`
	Tokens      *credentials.Bundle `json:"tokens" binding:"required"`
}

// handleRequestVerification starts a verification for a location.
func (s *Server) handleRequestVerification(c *gin.Context) {
	var req RequestVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	verification, err := client.RequestVerification(c.Request.Context(), req.LocationID, upstream.VerifyParams{
		Method:      req.Method,
		PhoneNumber: req.PhoneNumber,
	})
	s.recordUpstream(c, "verifications.verify", req.LocationID, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, verification)
}

// handlePendingVerification lists verifications for a location.
func (s *Server) handlePendingVerification(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	verifications, err := client.ListVerifications(c.Request.Context(), req.LocationID)
	s.recordUpstream(c, "verifications.list", req.LocationID, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifications)
}

// CompleteVerificationRequest carries the verification resource name and
// the PIN the owner received.
type CompleteVerificationRequest struct {
	Verify string              `json:"verify" binding:"required"`
	Pin    string              `json:"pin" binding:"required"`
	Tokens *credentials.Bundle `json:"tokens" binding:"required"`
}

// handleCompleteVerification finishes a verification with a PIN.
func (s *Server) handleCompleteVerification(c *gin.Context) {
	var req CompleteVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, ok := s.clientFor(c, req.Tokens)
	if !ok {
		return
	}

	start := time.Now()
	verification, err := client.CompleteVerification(c.Request.Context(), req.Verify, req.Pin)
	s.recordUpstream(c, "verifications.complete", req.Verify, start, err)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, verification)
}

// GetPlaceIDRequest names the business to look up. No token bundle: the
// place search runs on the configured API key.
type GetPlaceIDRequest struct {
	LocationName    string `json:"locationName" binding:"required"`
	LocationAddress string `json:"locationAddress" binding:"required"`
}

// handleGetPlaceID resolves a business name and address to a place id.
func (s *Server) handleGetPlaceID(c *gin.Context) {
	var req GetPlaceIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, err := s.places.FindPlace(c.Request.Context(), req.LocationName, req.LocationAddress)

	event := logging.NewAuditEvent(logging.PlaceLookup, "place text search", logging.StatusSuccess)
	event.IPAddress = c.ClientIP()
	event.Resource = req.LocationName
	if err != nil {
		event.WithError(err.Error())
	}
	s.audit.SaveEventAsync(event)

	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, match)
}
