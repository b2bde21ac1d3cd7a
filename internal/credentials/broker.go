// Package credentials owns the OAuth2 client configuration for the
// Business Profile scope. The broker never stores tokens: every forwarded
// request re-hydrates its own token source from the caller's bundle, so
// concurrent requests with different bundles cannot observe each other's
// identity.
package credentials

import (
	"context"

	"github.com/profilegate/profilegate/internal/config"
	"github.com/profilegate/profilegate/internal/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Broker produces authorization URLs, exchanges authorization codes and
// builds per-request token sources from caller-supplied bundles.
type Broker struct {
	cfg *oauth2.Config
}

// Option configures a Broker.
type Option func(*Broker)

// WithEndpoint overrides the OAuth endpoint, mainly for tests.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(b *Broker) {
		b.cfg.Endpoint = endpoint
	}
}

// NewBroker creates a broker from static OAuth client configuration.
func NewBroker(cfg config.OAuthConfig, opts ...Option) *Broker {
	b := &Broker{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AuthURL returns the Google consent URL. Offline access is requested so
// the exchange yields a refresh token.
func (b *Broker) AuthURL() string {
	return b.cfg.AuthCodeURL("", oauth2.AccessTypeOffline)
}

// Exchange swaps an authorization code for a token bundle. The bundle is
// returned to the caller for safekeeping; nothing is retained here.
func (b *Broker) Exchange(ctx context.Context, code string) (*Bundle, error) {
	tok, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, &errors.ErrAuthExchange{Err: err}
	}
	return fromToken(tok), nil
}

// TokenSource validates the bundle and returns a token source scoped to
// this call. The source refreshes through the broker's client config when
// the access token is expired.
func (b *Broker) TokenSource(ctx context.Context, bundle *Bundle) (oauth2.TokenSource, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return b.cfg.TokenSource(ctx, bundle.token()), nil
}
