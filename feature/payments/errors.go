package payments

import "errors"

var (
	// ErrMissingCredentials is returned when no API key is stored.
	ErrMissingCredentials = errors.New("payment platform credentials are not configured")
	// ErrDecode is returned when a whole response payload cannot be decoded.
	ErrDecode = errors.New("payment platform response could not be decoded")
)
