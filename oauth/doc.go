// Package oauth implements the PKCE authorization-code flow against the
// Etsy identity provider, plus the token persistence adapters each host
// surface plugs into the API client.
//
// The flow client is stateless per call apart from the in-flight
// authorization session (state + code verifier), which lives for at most ten
// minutes and is consumed exactly once by the callback. Hosts that handle
// the callback in a different process persist the session via Session and
// RestoreSession.
//
// TokenSource adapts a TokenStore into the etsyapi.TokenProvider contract:
// it returns the stored access token, refreshing it first when it is within
// five minutes of expiry, and collapses concurrent refreshes for the same
// owner into a single provider call.
package oauth
