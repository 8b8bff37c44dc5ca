package etsyapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TokenProvider supplies a current, valid access token for authenticated
// requests. Implementations are host-specific (server-side per-user record,
// browser extension storage, OS-level encrypted store) and must
// refresh-then-return when the stored token is within its expiry buffer.
// The client never persists tokens itself.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// RateLimitInfo is the latest server-reported quota state. It is updated
// only from response headers and is advisory: the request queue's local
// limits are the actual enforcement mechanism.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitObserver is invoked synchronously after every response that
// carries quota headers. Observers must be fast and must not panic.
type RateLimitObserver func(info RateLimitInfo)

// ErrorObserver is invoked synchronously before a classified error
// propagates to the caller. Observers must be fast and must not panic.
type ErrorObserver func(err *Error)

// RetryCondition decides whether a failed attempt should be retried. It is
// evaluated after every failure; resp may be nil when err is set.
type RetryCondition func(resp *http.Response, err error) bool

// RetryPolicy configures the backoff engine.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// InitialDelay seeds the exponential sequence
	// min(InitialDelay * Multiplier^k, MaxDelay) for attempt k.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter in [0,1] adds up to that fraction of random extra delay.
	// Zero keeps the sequence deterministic.
	Jitter float64

	// RetryableStatus and RetryableErrors widen or replace the default
	// classified set used by DefaultRetryCondition. Empty slices keep the
	// defaults (429, 500, 502, 503, 504; reset/timeout/DNS transport errors).
	RetryableStatus []int
	RetryableErrors []string
}

// QueueConfig bounds request dispatch. Immutable after construction.
type QueueConfig struct {
	// Concurrency is the maximum number of in-flight requests.
	Concurrency int

	// MaxPerWindow caps how many requests may start within Window.
	Window       time.Duration
	MaxPerWindow int
}

// QueueStats is a point-in-time snapshot of queue state.
type QueueStats struct {
	Queued   int
	InFlight int
	Paused   bool
}

// RequestOptions tunes a single call to Request. The zero value (or nil)
// means an authenticated, cacheable GET with client defaults.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Params are appended to the endpoint as a sorted query string and take
	// part in the cache key.
	Params map[string]string

	// Body is JSON-encoded for mutating verbs.
	Body any

	// SkipAuth omits the bearer token (public endpoints).
	SkipAuth bool

	// SkipCache bypasses the cache read and write for this call.
	SkipCache bool

	// CacheTTL overrides the resolved per-endpoint TTL when positive.
	CacheTTL time.Duration

	// Timeout overrides the client timeout for this call when positive.
	Timeout time.Duration

	// Headers are applied last so they can override computed defaults.
	Headers map[string]string
}

// Response is a successful (2xx) API response.
type Response struct {
	Data       []byte
	StatusCode int
	Header     http.Header
}

// Page is the shape of the platform's paginated list responses.
type Page struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
	Params  map[string]any    `json:"params"`
}

// DebugConfig gates per-concern debug logging.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogQueue     bool
	LogRetries   bool
	LogRateLimit bool
	LogAuth      bool
	RequestIDGen func() string
}

// DefaultDebugConfig enables all concerns but leaves debug logging off until
// WithDebug is applied.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogQueue:     true,
		LogRetries:   true,
		LogRateLimit: true,
		LogAuth:      true,
		RequestIDGen: uuid.NewString,
	}
}

// Option configures a Client at construction.
type Option func(*Client)
