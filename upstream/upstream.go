// Package upstream defines the boundary to the synchronous image-generation
// API. The store treats the Submitter as an opaque collaborator: it forwards
// the recorded request, waits for the single blocking exchange, and records
// whatever comes back. Timeout handling belongs to the Submitter itself.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Submitter performs one synchronous upstream exchange for the given
// operation kind. Implementations must bound their own call duration and
// classify failures with *Error where possible.
type Submitter interface {
	Submit(ctx context.Context, kind string, request json.RawMessage) (json.RawMessage, error)
}

// SubmitterFunc adapts a plain function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, kind string, request json.RawMessage) (json.RawMessage, error)

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, kind string, request json.RawMessage) (json.RawMessage, error) {
	return f(ctx, kind, request)
}

// Error is a classified upstream failure.
type Error struct {
	// Code is a stable machine-readable identifier ("rate_limited",
	// "invalid_request", "upstream_error", ...).
	Code string
	// Message is the human-readable description.
	Message string
	// StatusCode is the HTTP status of the failed exchange, zero when the
	// failure happened below the HTTP layer.
	StatusCode int
	// RetryAfter is the server-requested wait before the next attempt,
	// zero when the response carried no such signal.
	RetryAfter time.Duration
	// Retryable marks the failure as transient.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream: %s: %s", e.Code, e.Message)
}

// NewError builds a classified error from an HTTP status and message,
// deriving Code and Retryable from the status.
func NewError(statusCode int, message string) *Error {
	e := &Error{
		Code:       codeForStatus(statusCode),
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryableStatus(statusCode),
	}
	return e
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "unauthorized"
	case status >= 400 && status < 500:
		return "invalid_request"
	default:
		return "upstream_error"
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// Retryable reports whether err is safe to retry: a classified *Error marked
// retryable, or a connection-level failure (reset, refused, timeout, DNS).
// Context cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ue *Error
	if errors.As(err, &ue) {
		return ue.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// RetryAfter extracts the server-requested retry delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var ue *Error
	if errors.As(err, &ue) && ue.RetryAfter > 0 {
		return ue.RetryAfter, true
	}
	return 0, false
}
