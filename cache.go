package etsyapi

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Cache stores serialized response payloads with a TTL. Implementations must
// be safe for concurrent use. Backend failures are reported as errors and
// fully absorbed by the client: a failed read is a miss, a failed write is
// skipped, and the surrounding request proceeds to the network either way.
type Cache interface {
	// Get returns (value, true, nil) on hit, (nil, false, nil) on miss and
	// (nil, false, err) on backend failure.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key containing substring; an empty substring
	// removes everything.
	Clear(ctx context.Context, substring string) error

	// Exists reports whether key holds a live entry.
	Exists(ctx context.Context, key string) (bool, error)
}

// cacheKey builds the deterministic key for an endpoint and its query
// parameters: the endpoint path followed by the sorted parameter pairs.
// Keys start with the endpoint path so mutating verbs can invalidate by
// path prefix.
func cacheKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}

// ttlResolver maps endpoint paths to TTLs. The longest configured pattern
// contained in the path wins; equal lengths break the tie lexicographically
// so resolution never depends on map iteration order. No match falls back
// to the default.
type ttlResolver struct {
	defaultTTL time.Duration
	byPattern  map[string]time.Duration
}

func newTTLResolver(defaultTTL time.Duration, byPattern map[string]time.Duration) *ttlResolver {
	return &ttlResolver{defaultTTL: defaultTTL, byPattern: byPattern}
}

func (r *ttlResolver) resolve(endpoint string) time.Duration {
	matched := false
	best := ""
	ttl := r.defaultTTL
	for pattern, patternTTL := range r.byPattern {
		if !strings.Contains(endpoint, pattern) {
			continue
		}
		if !matched || len(pattern) > len(best) || (len(pattern) == len(best) && pattern < best) {
			matched = true
			best = pattern
			ttl = patternTTL
		}
	}
	return ttl
}
