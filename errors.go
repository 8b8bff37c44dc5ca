package etsyapi

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure so callers can decide how to react without
// string-matching messages.
type ErrorKind string

const (
	// KindNetwork means no response was received (connection reset, DNS
	// failure, broken transport).
	KindNetwork ErrorKind = "Network"

	// KindAPI means the platform answered with a non-2xx status.
	KindAPI ErrorKind = "API"

	// KindRateLimit means the platform answered 429; RetryAfter carries the
	// server-supplied wait when present.
	KindRateLimit ErrorKind = "RateLimit"

	// KindToken means a bearer credential was missing, invalid, expired or
	// could not be refreshed.
	KindToken ErrorKind = "Token"

	// KindTimeout means the per-request timeout aborted the transport.
	KindTimeout ErrorKind = "Timeout"

	// KindCache marks internal cache backend failures. Errors of this kind
	// are absorbed at the cache boundary and never surface to callers of
	// Client.Request.
	KindCache ErrorKind = "Cache"

	// KindValidation marks construction-time configuration errors.
	KindValidation ErrorKind = "Validation"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrQueueClosed is returned when a request is submitted after Close.
	ErrQueueClosed = errors.New("etsyapi: queue closed")

	// ErrNoTokenProvider is returned for authenticated requests on a client
	// constructed without a TokenProvider.
	ErrNoTokenProvider = errors.New("etsyapi: no token provider configured")
)

// Error is a classified failure from the API client. It is the only error
// type Client.Request returns besides context errors.
type Error struct {
	Kind        ErrorKind
	Code        string
	Description string
	HTTPStatus  int
	RetryAfter  time.Duration
	RequestID   string
	Method      string
	Endpoint    string
	Attempt     int
	Cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("etsyapi: %s", e.Kind)
	if e.HTTPStatus > 0 {
		msg = fmt.Sprintf("%s (%d)", msg, e.HTTPStatus)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	if e.Endpoint != "" {
		msg = fmt.Sprintf("%s [%s %s]", msg, e.Method, e.Endpoint)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors of the same Kind, so
// errors.Is(err, &Error{Kind: KindRateLimit}) works.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// IsRetryable reports whether the error is in the default-classified
// retryable set: network failures, timeouts, 429 and 5xx gateway statuses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindNetwork, KindTimeout, KindRateLimit:
			return true
		case KindAPI:
			return retryableStatus(apiErr.HTTPStatus)
		default:
			return false
		}
	}
	return false
}

func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
