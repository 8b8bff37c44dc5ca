package etsyapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Quota headers reported by the platform on every response.
const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// rateLimitTracker records the latest server-reported quota state. It is
// purely observational: values are only ever refreshed from response
// headers, never decremented locally, and missing headers leave the previous
// value unchanged.
type rateLimitTracker struct {
	mu       sync.Mutex
	info     RateLimitInfo
	onUpdate RateLimitObserver
}

func newRateLimitTracker(observer RateLimitObserver) *rateLimitTracker {
	return &rateLimitTracker{onUpdate: observer}
}

// update parses quota headers from a response. The observer, if registered,
// is invoked synchronously with the new snapshot whenever at least one
// header was present.
func (t *rateLimitTracker) update(h http.Header) {
	limit, okLimit := parseIntHeader(h, headerRateLimitLimit)
	remaining, okRemaining := parseIntHeader(h, headerRateLimitRemaining)
	reset, okReset := parseIntHeader(h, headerRateLimitReset)

	if !okLimit && !okRemaining && !okReset {
		return
	}

	t.mu.Lock()
	if okLimit {
		t.info.Limit = limit
	}
	if okRemaining {
		t.info.Remaining = remaining
	}
	if okReset {
		t.info.ResetAt = resetTime(reset)
	}
	info := t.info
	observer := t.onUpdate
	t.mu.Unlock()

	if observer != nil {
		observer(info)
	}
}

func (t *rateLimitTracker) snapshot() RateLimitInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

func parseIntHeader(h http.Header, name string) (int, bool) {
	v := h.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// resetTime interprets the reset header as an epoch timestamp when it is
// large enough to be one, otherwise as seconds from now.
func resetTime(v int) time.Time {
	const epochThreshold = 1_000_000_000
	if v >= epochThreshold {
		return time.Unix(int64(v), 0)
	}
	return time.Now().Add(time.Duration(v) * time.Second)
}
