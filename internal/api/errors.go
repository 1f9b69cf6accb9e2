package api

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is wrapped by every error caused by a response body
// that does not match the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// NetworkError reports a request that never produced an HTTP response
// (connection failure, timeout, cancellation).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: API returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Op, e.StatusCode, e.Body)
}
