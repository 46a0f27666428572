package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNetwork matches every TransportError.
var ErrNetwork = errors.New("network error")

// HTTPError is returned for terminal non-success responses.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsTransient reports whether the status is one that is retried.
func (e *HTTPError) IsTransient() bool {
	return isRetryableStatus(e.StatusCode)
}

// TransportError is returned when no response could be obtained.
type TransportError struct {
	Method    string
	URL       string
	Attempts  int
	Transient bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: giving up after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{e.Err, ErrNetwork}
}

// IsNotFound reports whether err is an HTTPError for a 404 response.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.IsNotFound()
}
