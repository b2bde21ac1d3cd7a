package upstream

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
)

const (
	// listReadMask is the field mask applied when listing locations.
	listReadMask = "name,title,phoneNumbers,categories,profile,metadata"

	// detailReadMask is the field mask applied when fetching one location.
	detailReadMask = "name,languageCode,storeCode,title,phoneNumbers,categories," +
		"storefrontAddress,websiteUri,regularHours,specialHours,serviceArea,labels," +
		"adWordsLocationExtensions,latlng,openInfo,metadata,profile,relationshipData," +
		"moreHours,serviceItems"

	categoryViewFull = "FULL"

	attributesPageSize = 1000
)

// ListCategories returns business categories matching the free-text filter,
// scoped to the configured region and language.
func (c *Client) ListCategories(ctx context.Context, filter string) ([]*mybusinessbusinessinformation.Category, error) {
	call := c.info.Categories.List().
		RegionCode(c.opts.RegionCode).
		LanguageCode(c.opts.LanguageCode).
		View(categoryViewFull).
		Context(ctx)
	if filter != "" {
		call = call.Filter(filter)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, wrapError("categories.list", err)
	}
	return resp.Categories, nil
}

// CreateLocation creates a location under the given group (or the
// configured default group). The payload is caller-supplied; a fresh
// request id makes the create idempotent on upstream retries.
func (c *Client) CreateLocation(ctx context.Context, groupID string, location *mybusinessbusinessinformation.Location) (*mybusinessbusinessinformation.Location, error) {
	if groupID == "" {
		groupID = c.opts.LocationGroupID
	}
	if location.LanguageCode == "" {
		location.LanguageCode = c.opts.LanguageCode
	}
	created, err := c.info.Accounts.Locations.Create(accountName(groupID), location).
		RequestId(uuid.New().String()).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("locations.create", err)
	}
	return created, nil
}

// ListLocations returns the locations in a group, trimmed to the listing
// field mask.
func (c *Client) ListLocations(ctx context.Context, groupID string) (*mybusinessbusinessinformation.ListLocationsResponse, error) {
	if groupID == "" {
		groupID = c.opts.LocationGroupID
	}
	resp, err := c.info.Accounts.Locations.List(accountName(groupID)).
		ReadMask(listReadMask).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("locations.list", err)
	}
	return resp, nil
}

// GetLocation fetches one location with the full detail field mask.
func (c *Client) GetLocation(ctx context.Context, locationID string) (*mybusinessbusinessinformation.Location, error) {
	location, err := c.info.Locations.Get(locationName(locationID)).
		ReadMask(detailReadMask).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("locations.get", err)
	}
	return location, nil
}

// DeleteLocation removes a location.
func (c *Client) DeleteLocation(ctx context.Context, locationID string) error {
	if _, err := c.info.Locations.Delete(locationName(locationID)).Context(ctx).Do(); err != nil {
		return wrapError("locations.delete", err)
	}
	return nil
}

// ListAttributes returns the full attribute metadata catalogue for the
// configured region and language.
func (c *Client) ListAttributes(ctx context.Context) (*mybusinessbusinessinformation.ListAttributeMetadataResponse, error) {
	resp, err := c.info.Attributes.List().
		ShowAll(true).
		LanguageCode(c.opts.LanguageCode).
		RegionCode(c.opts.RegionCode).
		PageSize(attributesPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("attributes.list", err)
	}
	return resp, nil
}
