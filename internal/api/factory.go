package api

import (
	"context"

	"github.com/profilegate/profilegate/internal/credentials"
	"github.com/profilegate/profilegate/internal/upstream"
	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"
	"google.golang.org/api/mybusinessverifications/v1"
)

// Upstream is the forwarded-call surface the handlers depend on. The
// production implementation is upstream.Client; tests substitute fakes.
type Upstream interface {
	ListAccounts(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error)
	CreateLocationGroup(ctx context.Context, groupName string) (*mybusinessaccountmanagement.Account, error)
	ListLocationGroups(ctx context.Context) ([]*mybusinessaccountmanagement.Account, error)

	ListCategories(ctx context.Context, filter string) ([]*mybusinessbusinessinformation.Category, error)
	CreateLocation(ctx context.Context, groupID string, location *mybusinessbusinessinformation.Location) (*mybusinessbusinessinformation.Location, error)
	ListLocations(ctx context.Context, groupID string) (*mybusinessbusinessinformation.ListLocationsResponse, error)
	GetLocation(ctx context.Context, locationID string) (*mybusinessbusinessinformation.Location, error)
	DeleteLocation(ctx context.Context, locationID string) error
	ListAttributes(ctx context.Context) (*mybusinessbusinessinformation.ListAttributeMetadataResponse, error)

	FetchVerificationOptions(ctx context.Context, locationID string) ([]*mybusinessverifications.VerificationOption, error)
	RequestVerification(ctx context.Context, locationID string, params upstream.VerifyParams) (*mybusinessverifications.Verification, error)
	ListVerifications(ctx context.Context, locationID string) (*mybusinessverifications.ListVerificationsResponse, error)
	CompleteVerification(ctx context.Context, name, pin string) (*mybusinessverifications.Verification, error)
}

// UpstreamFactory builds an authenticated upstream client scoped to one
// inbound request. Each request gets its own client from its own token
// bundle; nothing is shared between concurrent handlers.
type UpstreamFactory func(ctx context.Context, bundle *credentials.Bundle) (Upstream, error)

// NewUpstreamFactory wires the credential broker and forwarding defaults
// into a per-request client constructor.
func NewUpstreamFactory(broker *credentials.Broker, opts upstream.Options) UpstreamFactory {
	return func(ctx context.Context, bundle *credentials.Bundle) (Upstream, error) {
		ts, err := broker.TokenSource(ctx, bundle)
		if err != nil {
			return nil, err
		}
		client, err := upstream.NewClient(ctx, ts, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
