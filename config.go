package etsyapi

import (
	"fmt"
	"strings"
	"time"
)

// Default configuration values applied by New for zero fields.
const (
	DefaultBaseURL   = "https://openapi.etsy.com/v3/application"
	DefaultUserAgent = "etsy-manager/1.0"
	DefaultTimeout   = 30 * time.Second

	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1000

	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0

	DefaultConcurrency  = 5
	DefaultWindow       = time.Second
	DefaultMaxPerWindow = 10
)

// Config is the complete configuration surface of a Client. Zero fields take
// the documented defaults, applied once in New.
type Config struct {
	// BaseURL is the platform API root. Endpoints passed to Request are
	// joined to it.
	BaseURL string

	// APIKey is sent as the x-api-key header on every request.
	APIKey string

	UserAgent string

	// Timeout bounds each network call (not the whole retry series).
	Timeout time.Duration

	// CacheEnabled turns on response caching for GET requests.
	CacheEnabled bool

	// CacheTTL is the client-wide default TTL for cached responses.
	CacheTTL time.Duration

	// CacheTTLByEndpoint maps endpoint path patterns to TTLs. The longest
	// pattern contained in the request path wins; no match falls back to
	// CacheTTL.
	CacheTTLByEndpoint map[string]time.Duration

	// CacheMaxEntries caps the in-process cache backend. Ignored for
	// external backends supplied via WithCache.
	CacheMaxEntries int

	Retry RetryPolicy
	Queue QueueConfig
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheMaxEntries == 0 {
		cfg.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = DefaultInitialDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = DefaultMaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = DefaultMultiplier
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = DefaultConcurrency
	}
	if cfg.Queue.Window == 0 {
		cfg.Queue.Window = DefaultWindow
	}
	if cfg.Queue.MaxPerWindow == 0 {
		cfg.Queue.MaxPerWindow = DefaultMaxPerWindow
	}
	return cfg
}

func (cfg Config) validate() error {
	var problems []string

	if cfg.Timeout < 0 {
		problems = append(problems, "Timeout must be non-negative")
	}
	if cfg.Retry.MaxAttempts < 1 {
		problems = append(problems, "Retry.MaxAttempts must be at least 1")
	}
	if cfg.Retry.InitialDelay <= 0 {
		problems = append(problems, "Retry.InitialDelay must be positive")
	}
	if cfg.Retry.MaxDelay < cfg.Retry.InitialDelay {
		problems = append(problems, "Retry.MaxDelay must be >= Retry.InitialDelay")
	}
	if cfg.Retry.Multiplier <= 0 {
		problems = append(problems, "Retry.Multiplier must be positive")
	}
	if cfg.Retry.Jitter < 0 || cfg.Retry.Jitter > 1 {
		problems = append(problems, "Retry.Jitter must be between 0 and 1")
	}
	if cfg.Queue.Concurrency < 1 {
		problems = append(problems, "Queue.Concurrency must be at least 1")
	}
	if cfg.Queue.Window <= 0 {
		problems = append(problems, "Queue.Window must be positive")
	}
	if cfg.Queue.MaxPerWindow < 1 {
		problems = append(problems, "Queue.MaxPerWindow must be at least 1")
	}
	if cfg.CacheMaxEntries < 0 {
		problems = append(problems, "CacheMaxEntries must be non-negative")
	}
	for pattern, ttl := range cfg.CacheTTLByEndpoint {
		if ttl <= 0 {
			problems = append(problems, fmt.Sprintf("CacheTTLByEndpoint[%q] must be positive", pattern))
		}
	}

	if len(problems) > 0 {
		return &Error{
			Kind:        KindValidation,
			Description: "configuration validation failed",
			Cause:       fmt.Errorf("%s", strings.Join(problems, "; ")),
		}
	}
	return nil
}
