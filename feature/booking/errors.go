package booking

import "errors"

var (
	// ErrMissingCredentials is returned when no client id/secret is stored.
	ErrMissingCredentials = errors.New("booking platform credentials are not configured")
	// ErrDecode is returned when a whole response payload cannot be decoded.
	ErrDecode = errors.New("booking platform response could not be decoded")
)
