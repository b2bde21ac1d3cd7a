package upstream

import (
	"context"

	"google.golang.org/api/mybusinessverifications/v1"
)

// MethodSMS is the default verification delivery method.
const MethodSMS = "SMS"

// VerifyParams optionally override the configured verification defaults.
type VerifyParams struct {
	Method      string
	PhoneNumber string
}

// FetchVerificationOptions returns the verification methods available for
// a location.
func (c *Client) FetchVerificationOptions(ctx context.Context, locationID string) ([]*mybusinessverifications.VerificationOption, error) {
	req := &mybusinessverifications.FetchVerificationOptionsRequest{
		LanguageCode: c.opts.LanguageCode,
	}
	resp, err := c.verify.Locations.FetchVerificationOptions(locationName(locationID), req).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("verifications.fetchOptions", err)
	}
	return resp.Options, nil
}

// RequestVerification starts a verification for a location. Method and
// phone number default from configuration when the caller leaves them
// empty.
func (c *Client) RequestVerification(ctx context.Context, locationID string, params VerifyParams) (*mybusinessverifications.Verification, error) {
	method := params.Method
	if method == "" {
		method = MethodSMS
	}
	req := &mybusinessverifications.VerifyLocationRequest{
		Method:       method,
		LanguageCode: c.opts.LanguageCode,
	}
	if method == MethodSMS {
		req.PhoneNumber = params.PhoneNumber
		if req.PhoneNumber == "" {
			req.PhoneNumber = c.opts.VerificationPhone
		}
	}
	resp, err := c.verify.Locations.Verify(locationName(locationID), req).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("verifications.verify", err)
	}
	return resp.Verification, nil
}

// ListVerifications returns the verifications attempted for a location,
// pending ones included.
func (c *Client) ListVerifications(ctx context.Context, locationID string) (*mybusinessverifications.ListVerificationsResponse, error) {
	resp, err := c.verify.Locations.Verifications.List(locationName(locationID)).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("verifications.list", err)
	}
	return resp, nil
}

// CompleteVerification finishes a verification with the PIN the owner
// received. The name is the full verification resource name.
func (c *Client) CompleteVerification(ctx context.Context, name, pin string) (*mybusinessverifications.Verification, error) {
	req := &mybusinessverifications.CompleteVerificationRequest{Pin: pin}
	resp, err := c.verify.Locations.Verifications.Complete(name, req).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("verifications.complete", err)
	}
	return resp.Verification, nil
}
