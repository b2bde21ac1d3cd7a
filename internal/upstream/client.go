// Package upstream wraps the three Business Profile services behind one
// client. A client is built per inbound request from that request's token
// source and discarded afterwards; it carries no credentials of its own.
package upstream

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
	"google.golang.org/api/mybusinessverifications/v1"
	"google.golang.org/api/option"
)

// Options carries the fixed defaults merged into forwarded calls.
type Options struct {
	// AccountID owns location groups created through this gateway.
	AccountID string
	// LocationGroupID is the fallback parent when a request names no group.
	LocationGroupID string
	RegionCode      string
	LanguageCode    string
	// VerificationPhone is the default number for SMS verification.
	VerificationPhone string
}

// Client issues forwarded Business Profile calls under one caller identity.
type Client struct {
	accounts *mybusinessaccountmanagement.Service
	info     *mybusinessbusinessinformation.Service
	verify   *mybusinessverifications.Service
	opts     Options
}

// NewClient builds an authenticated client from a per-request token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts Options) (*Client, error) {
	accounts, err := mybusinessaccountmanagement.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	info, err := mybusinessbusinessinformation.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	verify, err := mybusinessverifications.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &Client{accounts: accounts, info: info, verify: verify, opts: opts}, nil
}

// accountName renders an account resource name from a bare id.
func accountName(id string) string {
	if strings.HasPrefix(id, "accounts/") {
		return id
	}
	return "accounts/" + id
}

// locationName renders a location resource name from a bare id.
func locationName(id string) string {
	if strings.HasPrefix(id, "locations/") {
		return id
	}
	return "locations/" + id
}
