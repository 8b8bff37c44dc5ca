package oauth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the authorization flow and token stores.
var (
	// ErrUserDenied means the user rejected the authorization prompt.
	ErrUserDenied = errors.New("oauth: user denied authorization")

	// ErrInvalidState means the callback state was missing, expired or did
	// not match the in-flight session.
	ErrInvalidState = errors.New("oauth: invalid state")

	// ErrNoAuthCode means the callback carried no authorization code.
	ErrNoAuthCode = errors.New("oauth: authorization code missing")

	// ErrNoVerifier means no PKCE code verifier is available for the
	// exchange. PKCE is mandatory.
	ErrNoVerifier = errors.New("oauth: code verifier missing")

	// ErrTokenExchange means the provider rejected the code-for-tokens
	// exchange.
	ErrTokenExchange = errors.New("oauth: token exchange failed")

	// ErrTokenRefresh means the provider rejected the refresh grant. The
	// token source deletes the stored credential on this error, forcing
	// re-authorization.
	ErrTokenRefresh = errors.New("oauth: token refresh failed")

	// ErrNoRefreshToken means the stored credential has no refresh token to
	// renew with.
	ErrNoRefreshToken = errors.New("oauth: refresh token missing")

	// ErrNotFound is returned by token stores when no credential exists for
	// the owner.
	ErrNotFound = errors.New("oauth: tokens not found")
)

// FlowError carries provider error details for a failed flow step. It wraps
// one of the sentinel errors above so errors.Is keeps working.
type FlowError struct {
	Op          string // "callback", "exchange" or "refresh"
	Code        string // provider error code, e.g. "invalid_grant"
	Description string
	HTTPStatus  int
	Err         error
}

func (e *FlowError) Error() string {
	msg := fmt.Sprintf("oauth: %s failed", e.Op)
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	if e.HTTPStatus > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.HTTPStatus)
	}
	return msg
}

func (e *FlowError) Unwrap() error { return e.Err }
