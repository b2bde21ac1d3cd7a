package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/profilegate/profilegate/internal/config"
	"github.com/profilegate/profilegate/internal/credentials"
	"github.com/profilegate/profilegate/internal/errors"
	"github.com/profilegate/profilegate/internal/logging"
	"github.com/profilegate/profilegate/internal/places"
	"github.com/profilegate/profilegate/internal/store"
	"github.com/profilegate/profilegate/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
	"google.golang.org/api/mybusinessverifications/v1"
)

// fakeUpstream implements Upstream with per-method hooks. Unset hooks
// return empty results.
type fakeUpstream struct {
	listAccounts     func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error)
	createGroup      func(ctx context.Context, groupName string) (*mybusinessaccountmanagement.Account, error)
	getLocation      func(ctx context.Context, locationID string) (*mybusinessbusinessinformation.Location, error)
	deleteLocation   func(ctx context.Context, locationID string) error
	listCategories   func(ctx context.Context, filter string) ([]*mybusinessbusinessinformation.Category, error)
	completeVerify   func(ctx context.Context, name, pin string) (*mybusinessverifications.Verification, error)
	requestVerify    func(ctx context.Context, locationID string, params upstream.VerifyParams) (*mybusinessverifications.Verification, error)
}

func (f *fakeUpstream) ListAccounts(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
	if f.listAccounts != nil {
		return f.listAccounts(ctx)
	}
	return nil, nil
}

func (f *fakeUpstream) CreateLocationGroup(ctx context.Context, groupName string) (*mybusinessaccountmanagement.Account, error) {
	if f.createGroup != nil {
		return f.createGroup(ctx, groupName)
	}
	return &mybusinessaccountmanagement.Account{AccountName: groupName, Type: upstream.TypeLocationGroup}, nil
}

func (f *fakeUpstream) ListLocationGroups(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
	accounts, err := f.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	groups := make([]*mybusinessaccountmanagement.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Type == upstream.TypeLocationGroup {
			groups = append(groups, account)
		}
	}
	return groups, nil
}

func (f *fakeUpstream) ListCategories(ctx context.Context, filter string) ([]*mybusinessbusinessinformation.Category, error) {
	if f.listCategories != nil {
		return f.listCategories(ctx, filter)
	}
	return nil, nil
}

func (f *fakeUpstream) CreateLocation(ctx context.Context, groupID string, location *mybusinessbusinessinformation.Location) (*mybusinessbusinessinformation.Location, error) {
	return location, nil
}

func (f *fakeUpstream) ListLocations(ctx context.Context, groupID string) (*mybusinessbusinessinformation.ListLocationsResponse, error) {
	return &mybusinessbusinessinformation.ListLocationsResponse{}, nil
}

func (f *fakeUpstream) GetLocation(ctx context.Context, locationID string) (*mybusinessbusinessinformation.Location, error) {
	if f.getLocation != nil {
		return f.getLocation(ctx, locationID)
	}
	return &mybusinessbusinessinformation.Location{Name: "locations/" + locationID}, nil
}

func (f *fakeUpstream) DeleteLocation(ctx context.Context, locationID string) error {
	if f.deleteLocation != nil {
		return f.deleteLocation(ctx, locationID)
	}
	return nil
}

func (f *fakeUpstream) ListAttributes(ctx context.Context) (*mybusinessbusinessinformation.ListAttributeMetadataResponse, error) {
	return &mybusinessbusinessinformation.ListAttributeMetadataResponse{}, nil
}

func (f *fakeUpstream) FetchVerificationOptions(ctx context.Context, locationID string) ([]*mybusinessverifications.VerificationOption, error) {
	return []*mybusinessverifications.VerificationOption{{VerificationMethod: upstream.MethodSMS}}, nil
}

func (f *fakeUpstream) RequestVerification(ctx context.Context, locationID string, params upstream.VerifyParams) (*mybusinessverifications.Verification, error) {
	if f.requestVerify != nil {
		return f.requestVerify(ctx, locationID, params)
	}
	return &mybusinessverifications.Verification{State: "PENDING"}, nil
}

func (f *fakeUpstream) ListVerifications(ctx context.Context, locationID string) (*mybusinessverifications.ListVerificationsResponse, error) {
	return &mybusinessverifications.ListVerificationsResponse{}, nil
}

func (f *fakeUpstream) CompleteVerification(ctx context.Context, name, pin string) (*mybusinessverifications.Verification, error) {
	if f.completeVerify != nil {
		return f.completeVerify(ctx, name, pin)
	}
	return &mybusinessverifications.Verification{Name: name, State: "COMPLETED"}, nil
}

type fakeFinder struct {
	match *places.Match
	err   error
}

func (f *fakeFinder) FindPlace(ctx context.Context, name, address string) (*places.Match, error) {
	return f.match, f.err
}

func staticFactory(fake Upstream) UpstreamFactory {
	return func(ctx context.Context, bundle *credentials.Bundle) (Upstream, error) {
		if err := bundle.Validate(); err != nil {
			return nil, err
		}
		return fake, nil
	}
}

func setupTestServer(factory UpstreamFactory, finder places.Finder) *Server {
	gin.SetMode(gin.TestMode)

	cfg := config.ServerConfig{Host: "localhost", HTTPPort: 8080}
	apiCfg := config.APIConfig{}
	broker := credentials.NewBroker(config.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/callback",
		Scopes:       []string{config.DefaultScope},
	})
	if finder == nil {
		finder = &fakeFinder{}
	}

	return NewServer(cfg, apiCfg, broker, factory, finder, store.NewMemoryAuditStore(), nil)
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	server.router.ServeHTTP(w, req)
	return w
}

func testBundle(token string) *credentials.Bundle {
	return &credentials.Bundle{AccessToken: token, TokenType: "Bearer"}
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(staticFactory(&fakeUpstream{}), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestHandleAuthURL(t *testing.T) {
	server := setupTestServer(staticFactory(&fakeUpstream{}), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/auth-url", nil)
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.URL, "client_id=client-id")
	assert.Contains(t, resp.URL, "access_type=offline")
	assert.Contains(t, resp.URL, "business.manage")
}

func TestHandleCallback(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"granted-token","token_type":"Bearer","refresh_token":"refresh-1","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	gin.SetMode(gin.TestMode)
	broker := credentials.NewBroker(config.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/callback",
		Scopes:       []string{config.DefaultScope},
	}, credentials.WithEndpoint(oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}))
	server := NewServer(config.ServerConfig{Host: "localhost", HTTPPort: 8080}, config.APIConfig{},
		broker, staticFactory(&fakeUpstream{}), &fakeFinder{}, store.NewMemoryAuditStore(), nil)

	w := postJSON(t, server, "/callback", gin.H{"code": "auth-code"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tokens credentials.Bundle `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "granted-token", resp.Tokens.AccessToken)
	assert.Equal(t, "refresh-1", resp.Tokens.RefreshToken)
}

func TestHandleCallbackBadCode(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer tokenServer.Close()

	gin.SetMode(gin.TestMode)
	broker := credentials.NewBroker(config.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/callback",
		Scopes:       []string{config.DefaultScope},
	}, credentials.WithEndpoint(oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}))
	server := NewServer(config.ServerConfig{Host: "localhost", HTTPPort: 8080}, config.APIConfig{},
		broker, staticFactory(&fakeUpstream{}), &fakeFinder{}, store.NewMemoryAuditStore(), nil)

	w := postJSON(t, server, "/callback", gin.H{"code": "expired-code"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHandleListGroupsFiltersLocationGroups(t *testing.T) {
	fake := &fakeUpstream{
		listAccounts: func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
			return []*mybusinessaccountmanagement.Account{
				{Name: "accounts/1", Type: "PERSONAL"},
				{Name: "accounts/2", Type: "LOCATION_GROUP"},
			}, nil
		},
	}
	server := setupTestServer(staticFactory(fake), nil)

	w := postJSON(t, server, "/list-groups", gin.H{"tokens": testBundle("tok")})

	assert.Equal(t, http.StatusOK, w.Code)

	var groups []*mybusinessaccountmanagement.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "accounts/2", groups[0].Name)
	assert.Equal(t, "LOCATION_GROUP", groups[0].Type)
}

func TestForwardedFailureReturns400(t *testing.T) {
	fake := &fakeUpstream{
		listAccounts: func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
			return nil, &errors.ErrUpstream{Op: "accounts.list", Err: fmt.Errorf("permission denied")}
		},
	}
	server := setupTestServer(staticFactory(fake), nil)

	for _, path := range []string{"/list-accounts", "/list-groups"} {
		w := postJSON(t, server, path, gin.H{"tokens": testBundle("tok")})

		assert.Equal(t, http.StatusBadRequest, w.Code, path)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp["error"], "permission denied")
	}
}

func TestMissingTokensRejected(t *testing.T) {
	server := setupTestServer(staticFactory(&fakeUpstream{}), nil)

	w := postJSON(t, server, "/list-accounts", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHandleGetLocationDetailsAddsMapsURL(t *testing.T) {
	fake := &fakeUpstream{
		getLocation: func(ctx context.Context, locationID string) (*mybusinessbusinessinformation.Location, error) {
			return &mybusinessbusinessinformation.Location{
				Name:  "locations/" + locationID,
				Title: "Blue Bottle Coffee",
				StorefrontAddress: &mybusinessbusinessinformation.PostalAddress{
					AddressLines: []string{"66 Mint St"},
					Locality:     "San Francisco",
					RegionCode:   "US",
					PostalCode:   "94103",
				},
				Metadata: &mybusinessbusinessinformation.Metadata{PlaceId: "place-123"},
				Latlng:   &mybusinessbusinessinformation.LatLng{Latitude: 37.78, Longitude: -122.41},
			}, nil
		},
	}
	server := setupTestServer(staticFactory(fake), nil)

	w := postJSON(t, server, "/get-location-details", gin.H{
		"locationId": "42",
		"tokens":     testBundle("tok"),
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	mapsURL, ok := body["googleMapsUrl"].(string)
	require.True(t, ok, "googleMapsUrl missing from response")
	assert.Contains(t, mapsURL, "query_place_id=place-123")
	assert.Contains(t, mapsURL, "37.78")
	assert.Contains(t, mapsURL, "zoom=17")
	assert.Equal(t, "Blue Bottle Coffee", body["title"])
}

func TestHandleDeleteLocation(t *testing.T) {
	server := setupTestServer(staticFactory(&fakeUpstream{}), nil)

	w := postJSON(t, server, "/delete-location", gin.H{
		"locationId": "42",
		"tokens":     testBundle("tok"),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "message")
}

func TestHandleGetPlaceID(t *testing.T) {
	finder := &fakeFinder{match: &places.Match{
		PlaceID: "place-xyz",
		MapsURL: upstream.PlaceMapsURL("place-xyz"),
	}}
	server := setupTestServer(staticFactory(&fakeUpstream{}), finder)

	w := postJSON(t, server, "/get-place-id", gin.H{
		"locationName":    "Blue Bottle Coffee",
		"locationAddress": "66 Mint St, San Francisco",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp places.Match
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "place-xyz", resp.PlaceID)
	assert.Contains(t, resp.MapsURL, "query_place_id=place-xyz")
}

func TestHandleGetPlaceIDNoMatch(t *testing.T) {
	finder := &fakeFinder{err: &errors.ErrNoPlaceMatch{Query: "Nowhere, Atlantis"}}
	server := setupTestServer(staticFactory(&fakeUpstream{}), finder)

	w := postJSON(t, server, "/get-place-id", gin.H{
		"locationName":    "Nowhere",
		"locationAddress": "Atlantis",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHandleGetPlaceIDLookupFailure(t *testing.T) {
	finder := &fakeFinder{err: &errors.ErrPlaceLookup{Err: fmt.Errorf("connection refused")}}
	server := setupTestServer(staticFactory(&fakeUpstream{}), finder)

	w := postJSON(t, server, "/get-place-id", gin.H{
		"locationName":    "Blue Bottle Coffee",
		"locationAddress": "66 Mint St",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHandleRequestVerificationForwardsOverrides(t *testing.T) {
	var gotParams upstream.VerifyParams
	fake := &fakeUpstream{
		requestVerify: func(ctx context.Context, locationID string, params upstream.VerifyParams) (*mybusinessverifications.Verification, error) {
			gotParams = params
			return &mybusinessverifications.Verification{State: "PENDING"}, nil
		},
	}
	server := setupTestServer(staticFactory(fake), nil)

	w := postJSON(t, server, "/request-verification", gin.H{
		"locationId":  "42",
		"method":      "SMS",
		"phoneNumber": "+15551234567",
		"tokens":      testBundle("tok"),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SMS", gotParams.Method)
	assert.Equal(t, "+15551234567", gotParams.PhoneNumber)
}

// Each inbound request dispatches exactly one upstream call, whether the
// call succeeds or fails. No retries.
func TestSingleUpstreamCallPerRequest(t *testing.T) {
	var calls int
	fake := &fakeUpstream{
		listAccounts: func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
			calls++
			return []*mybusinessaccountmanagement.Account{{Name: "accounts/1", Type: "PERSONAL"}}, nil
		},
	}
	server := setupTestServer(staticFactory(fake), nil)

	w := postJSON(t, server, "/list-accounts", gin.H{"tokens": testBundle("tok")})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)

	calls = 0
	fake.listAccounts = func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
		calls++
		return nil, &errors.ErrUpstream{Op: "accounts.list", Err: fmt.Errorf("backend unavailable")}
	}

	w = postJSON(t, server, "/list-accounts", gin.H{"tokens": testBundle("tok")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, calls, "failed requests must not retry")
}

func TestForwardedFailureLabelsGoogleStatus(t *testing.T) {
	fake := &fakeUpstream{
		listAccounts: func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
			return nil, &errors.ErrUpstream{
				Op:  "accounts.list",
				Err: &googleapi.Error{Code: http.StatusUnauthorized, Message: "invalid credentials"},
			}
		},
	}
	server := setupTestServer(staticFactory(fake), nil)

	w := postJSON(t, server, "/list-accounts", gin.H{"tokens": testBundle("tok")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	families, err := server.metrics.Registry().Gather()
	require.NoError(t, err)

	var gotType string
	for _, family := range families {
		if family.GetName() != "profilegate_errors_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "type" {
					gotType = label.GetValue()
				}
			}
		}
	}
	assert.Equal(t, "upstream_unauthorized", gotType)
}

// shutdownOrderStore flags audit writes that arrive after Close.
type shutdownOrderStore struct {
	store.AuditStore
	mu        sync.Mutex
	closed    bool
	lateSaves int
}

func (s *shutdownOrderStore) SaveEventAsync(event *logging.AuditEvent) {
	s.mu.Lock()
	if s.closed {
		s.lateSaves++
	}
	s.mu.Unlock()
	s.AuditStore.SaveEventAsync(event)
}

func (s *shutdownOrderStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.AuditStore.Close()
}

// A handler still running when shutdown begins records audit events on the
// way out; the store must stay open until the HTTP server has drained.
func TestShutdownClosesAuditAfterRequestsDrain(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fake := &fakeUpstream{
		listAccounts: func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
			close(entered)
			<-release
			return []*mybusinessaccountmanagement.Account{{Name: "accounts/1", Type: "PERSONAL"}}, nil
		},
	}

	gin.SetMode(gin.TestMode)
	auditStore := &shutdownOrderStore{AuditStore: store.NewMemoryAuditStore()}
	broker := credentials.NewBroker(config.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/callback",
		Scopes:       []string{config.DefaultScope},
	})
	server := NewServer(config.ServerConfig{Host: "localhost"}, config.APIConfig{},
		broker, staticFactory(fake), &fakeFinder{}, auditStore, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: server.router}
	server.httpServer = srv
	go srv.Serve(ln)

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		jsonBody, _ := json.Marshal(gin.H{"tokens": testBundle("tok")})
		resp, err := http.Post("http://"+ln.Addr().String()+"/list-accounts", "application/json", bytes.NewBuffer(jsonBody))
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-entered

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownDone <- server.Shutdown(ctx)
	}()

	// Let Shutdown stop accepting before the handler finishes
	time.Sleep(50 * time.Millisecond)
	close(release)

	<-requestDone
	require.NoError(t, <-shutdownDone)

	auditStore.mu.Lock()
	defer auditStore.mu.Unlock()
	assert.Zero(t, auditStore.lateSaves, "audit events recorded after store close")

	events, err := auditStore.Recent(10)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

// Concurrent requests carrying distinct bundles must each call upstream
// under their own identity.
func TestConcurrentRequestsUseOwnBundle(t *testing.T) {
	factory := func(ctx context.Context, bundle *credentials.Bundle) (Upstream, error) {
		if err := bundle.Validate(); err != nil {
			return nil, err
		}
		token := bundle.AccessToken
		return &fakeUpstream{
			listAccounts: func(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error) {
				return []*mybusinessaccountmanagement.Account{{Name: "accounts/" + token, Type: "PERSONAL"}}, nil
			},
		}, nil
	}
	server := setupTestServer(factory, nil)

	const iterations = 25
	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		for _, token := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(token string) {
				defer wg.Done()

				jsonBody, _ := json.Marshal(gin.H{"tokens": testBundle(token)})
				w := httptest.NewRecorder()
				req, _ := http.NewRequest("POST", "/list-accounts", bytes.NewBuffer(jsonBody))
				req.Header.Set("Content-Type", "application/json")
				server.router.ServeHTTP(w, req)

				assert.Equal(t, http.StatusOK, w.Code)
				assert.Contains(t, w.Body.String(), "accounts/"+token)
			}(token)
		}
	}
	wg.Wait()
}
