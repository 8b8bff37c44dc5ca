// Package etsyapi is the shared access layer for the Etsy Open API used by
// every surface of the shop manager (web server, desktop app, browser
// extension). It composes the reliability primitives each surface would
// otherwise reimplement:
//
//   - Bounded-concurrency request queue with a rolling rate-limit window
//   - Pluggable response cache (in-process or Redis) with per-endpoint TTLs
//     and write-invalidation
//   - Retry engine with classified exponential backoff and Retry-After support
//   - Rate-limit header tracking with observer callbacks
//   - Bearer-token acquisition through a pluggable TokenProvider (see the
//     oauth subpackage for the PKCE flow and token stores)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Explicit construction – a Config struct plus functional options, no
//     package-level state, so tests can build isolated instances
//   - Safe concurrent use of a single *Client instance
//   - Cache failures degrade to network calls, never to request failures
//
// Typical usage:
//
//	client, err := etsyapi.New(etsyapi.Config{
//	    APIKey:       apiKey,
//	    CacheEnabled: true,
//	    CacheTTLByEndpoint: map[string]time.Duration{
//	        "/shops":    time.Hour,
//	        "/listings": 10 * time.Minute,
//	    },
//	}, etsyapi.WithTokenProvider(source))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	resp, err := client.Get(ctx, "/shops/123/listings", map[string]string{"state": "active"})
//
// Only GET responses are cached; any mutating verb invalidates cached entries
// under the same path prefix before the call is issued.
package etsyapi
