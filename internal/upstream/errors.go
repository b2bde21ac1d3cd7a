package upstream

import (
	"errors"
	"net/http"

	apperrors "github.com/profilegate/profilegate/internal/errors"
	"google.golang.org/api/googleapi"
)

// wrapError tags any forwarded-call failure with the operation it came
// from. The googleapi error stays reachable through Unwrap for callers
// that branch on status codes.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &apperrors.ErrUpstream{Op: op, Err: err}
}

// IsNotFound returns true if the error is an upstream 404.
func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

// IsUnauthorized returns true if the error indicates invalid or expired
// caller credentials.
func IsUnauthorized(err error) bool {
	return statusCode(err) == http.StatusUnauthorized
}

// IsPermissionDenied returns true if the caller lacks access to the
// resource.
func IsPermissionDenied(err error) bool {
	return statusCode(err) == http.StatusForbidden
}

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
