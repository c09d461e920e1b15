package geocode

import (
	"errors"
	"fmt"
)

// Errors surfaced by search. Lookup folds them into an error Outcome.
var (
	// ErrRateLimited indicates the service answered 429.
	ErrRateLimited = errors.New("geocoder rate limit exceeded")

	// ErrNetworkError indicates the request did not complete.
	ErrNetworkError = errors.New("network error communicating with geocoder")

	// ErrInvalidResponse indicates a body that could not be used.
	ErrInvalidResponse = errors.New("invalid response from geocoder")
)

// APIError is a non-success HTTP status from the geocoding service.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("geocoder error (status %d)", e.StatusCode)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}
