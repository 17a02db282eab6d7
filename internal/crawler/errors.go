package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch is matched by every FetchError via errors.Is.
	ErrFetch = errors.New("fetch failed")

	// ErrInvalidQuota is returned when a crawl is asked for a negative number of records.
	ErrInvalidQuota = errors.New("invalid quota: must be non-negative")

	// ErrBodyTooLarge is wrapped by a FetchError whose response body exceeded
	// the fetcher's size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrInvalidProxyAddress is returned when the proxy is not "host:port"
	// or a socks5:// URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port or socks5://[user:pass@]host:port")
)

// FetchError reports a page that could not be retrieved: a transport
// failure, a timeout or a non-success status.
type FetchError struct {
	// URL is the page that was requested.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetch) true.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
