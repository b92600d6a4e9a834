package source

import "errors"

// Listing failures. Adapters wrap one of these so callers can classify the error.
var (
	ErrAuth              = errors.New("content source authentication failed")
	ErrRateLimited       = errors.New("content source rate limited")
	ErrTransport         = errors.New("content source transport error")
	ErrMalformedResponse = errors.New("content source returned a malformed response")
)

// IsTransient reports whether err is a listing failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrMalformedResponse)
}
