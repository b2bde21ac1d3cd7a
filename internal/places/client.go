// Package places looks up Google Place IDs for business locations using
// the Places text search API. It runs on an API key rather than the
// caller's OAuth credentials, so it has its own small HTTP client instead
// of going through the upstream services.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/profilegate/profilegate/internal/errors"
	"github.com/profilegate/profilegate/internal/upstream"
)

// DefaultEndpoint is the production Places text search endpoint.
const DefaultEndpoint = "https://maps.googleapis.com/maps/api/place/textsearch/json"

const requestTimeout = 10 * time.Second

// Match is a resolved place for a business name and address.
type Match struct {
	PlaceID string `json:"placeId"`
	MapsURL string `json:"googleMapsUrl"`
}

// Finder resolves a business name and address to a place id.
type Finder interface {
	FindPlace(ctx context.Context, name, address string) (*Match, error)
}

// Client calls the Places text search API.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the text search endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Places text search client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID string `json:"place_id"`
	} `json:"results"`
}

// FindPlace searches for "<name>, <address>" and returns the first match.
// No result at all is a distinct condition from a failed lookup; callers
// map the two to different responses.
func (c *Client) FindPlace(ctx context.Context, name, address string) (*Match, error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("%s, %s", name, address))
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &apperrors.ErrPlaceLookup{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperrors.ErrPlaceLookup{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &apperrors.ErrPlaceLookup{Err: fmt.Errorf("text search returned status %d", resp.StatusCode)}
	}

	var body textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &apperrors.ErrPlaceLookup{Err: err}
	}

	if body.Status == "ZERO_RESULTS" || len(body.Results) == 0 {
		return nil, &apperrors.ErrNoPlaceMatch{Query: fmt.Sprintf("%s, %s", name, address)}
	}
	if body.Status != "OK" {
		return nil, &apperrors.ErrPlaceLookup{Err: fmt.Errorf("text search status %s", body.Status)}
	}

	placeID := body.Results[0].PlaceID
	return &Match{
		PlaceID: placeID,
		MapsURL: upstream.PlaceMapsURL(placeID),
	}, nil
}
