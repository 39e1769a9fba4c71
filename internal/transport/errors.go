package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCodeNetwork tags failures where no response reached the client.
const ErrorCodeNetwork = "NETWORK_ERROR"

// APIError is the normalized failure shape surfaced by Send. StatusCode is
// 0 for pure connectivity failures.
type APIError struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"statusCode"`
	ErrorCode  string `json:"errorCode,omitempty"`
	err        error
}

// Error formats the failure for logs and UI.
func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s (status=%d code=%s)", e.Detail, e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("%s (status=%d)", e.Detail, e.StatusCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// StatusCode extracts the HTTP status from a normalized error, or -1 when
// the error did not come from this layer.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return -1
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == 404
}

// AsAPIError extracts the normalized error shape, or nil when the error
// did not come from this layer.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsCancelled reports whether the caller aborted the request.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
