package upstream

import (
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/api/mybusinessbusinessinformation/v1"
)

const mapsSearchBase = "https://www.google.com/maps/search/"

// MapsURL derives a Google Maps search URL from a location's storefront
// address, place id and coordinates. Fields that are missing are simply
// left out of the URL.
func MapsURL(location *mybusinessbusinessinformation.Location) string {
	values := url.Values{}
	values.Set("api", "1")

	if addr := location.StorefrontAddress; addr != nil {
		parts := append([]string{}, addr.AddressLines...)
		for _, part := range []string{addr.Locality, addr.RegionCode, addr.PostalCode} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			values.Set("query", strings.Join(parts, ", "))
		}
	}

	if location.Metadata != nil && location.Metadata.PlaceId != "" {
		values.Set("query_place_id", location.Metadata.PlaceId)
	} else if location.Name != "" {
		values.Set("query_place_id", strings.TrimPrefix(location.Name, "locations/"))
	}

	if ll := location.Latlng; ll != nil {
		values.Set("center", fmt.Sprintf("%v,%v", ll.Latitude, ll.Longitude))
		values.Set("zoom", "17")
	}

	return mapsSearchBase + "?" + values.Encode()
}

// PlaceMapsURL derives a Maps search URL from a bare place id, as returned
// by the place text search.
func PlaceMapsURL(placeID string) string {
	values := url.Values{}
	values.Set("api", "1")
	values.Set("query", "Google")
	values.Set("query_place_id", placeID)
	return mapsSearchBase + "?" + values.Encode()
}
