package kairosdb

import (
	"errors"
	"fmt"
)

// ErrNoQueries is returned when a successful response has no queries[0].
var ErrNoQueries = errors.New("kairosdb: response has no queries")

// HttpError is the only error kind reported for a failed query request.
// StatusCode is zero when the transport itself failed.
type HttpError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *HttpError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("kairosdb: request failed: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("kairosdb: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("kairosdb: unexpected status %d: %v", e.StatusCode, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *HttpError) Unwrap() error {
	return e.Err
}

// IsHttpError reports whether err is, or wraps, an *HttpError.
func IsHttpError(err error) bool {
	var httpErr *HttpError
	return errors.As(err, &httpErr)
}
