package credentials

import (
	"time"

	"github.com/profilegate/profilegate/internal/errors"
	"golang.org/x/oauth2"
)

// Bundle is the opaque token set a caller sends with every forwarding
// request. The JSON shape matches what /callback returned to the caller,
// which is the oauth2.Token wire format.
type Bundle struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Validate checks that the bundle can authenticate at least one upstream
// call. A bundle with only a refresh token is acceptable: the token source
// will mint an access token on first use.
func (b *Bundle) Validate() error {
	if b == nil {
		return &errors.ErrMalformedCredentials{Reason: "token bundle is missing"}
	}
	if b.AccessToken == "" && b.RefreshToken == "" {
		return &errors.ErrMalformedCredentials{Reason: "bundle carries neither access nor refresh token"}
	}
	return nil
}

func (b *Bundle) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  b.AccessToken,
		TokenType:    b.TokenType,
		RefreshToken: b.RefreshToken,
		Expiry:       b.Expiry,
	}
}

func fromToken(tok *oauth2.Token) *Bundle {
	return &Bundle{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
