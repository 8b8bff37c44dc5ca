package etsyapi

import "net/http"

// WithHTTPClient sets the underlying HTTP client. Per-request timeouts are
// applied through contexts, so the supplied client normally has no Timeout
// of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCache supplies a cache backend (for example NewRedisCache) instead of
// the default in-process one. Implies caching even when Config.CacheEnabled
// is false.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithTokenProvider sets the credential source for authenticated requests.
// Requests without SkipAuth fail with a token error when no provider is
// configured.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) {
		c.tokens = tp
	}
}

// WithRetryCondition replaces the default retryability predicate.
func WithRetryCondition(cond RetryCondition) Option {
	return func(c *Client) {
		c.retryCond = cond
	}
}

// WithRateLimitObserver registers a callback invoked synchronously after
// every response carrying quota headers.
func WithRateLimitObserver(fn RateLimitObserver) Option {
	return func(c *Client) {
		c.onRateLimit = fn
	}
}

// WithErrorObserver registers a callback invoked synchronously before a
// classified error propagates to the caller.
func WithErrorObserver(fn ErrorObserver) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDebug enables debug logging with the default per-concern flags. A
// SimpleLogger is installed if no logger was supplied.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		if c.logger == nil {
			c.logger = NewSimpleLogger()
		}
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(dc *DebugConfig) Option {
	return func(c *Client) {
		c.debug = dc
	}
}
