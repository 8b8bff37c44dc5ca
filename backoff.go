package etsyapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DrBalls/etsy-manager-sub000/internal/backoff"
)

// retryer executes a task under a retry policy. Retryability is decided by a
// caller-supplied condition, never by the retryer itself; the final error
// always propagates unchanged.
type retryer struct {
	policy RetryPolicy

	// sleep is swappable in tests. It must honor ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryer(policy RetryPolicy) *retryer {
	return &retryer{
		policy: policy,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn up to MaxAttempts times. The condition is evaluated after every
// failed attempt; a 429 response with a Retry-After header overrides the
// computed delay for that attempt only. attempts is reported back for error
// context.
func (r *retryer) do(ctx context.Context, cond RetryCondition, fn func(ctx context.Context) (*http.Response, error)) (resp *http.Response, attempts int, err error) {
	for attempt := 0; ; attempt++ {
		attempts = attempt + 1
		resp, err = fn(ctx)

		failed := err != nil || (resp != nil && resp.StatusCode >= 400)
		if !failed {
			return resp, attempts, nil
		}

		if attempt+1 >= r.policy.MaxAttempts || !cond(resp, err) {
			return resp, attempts, err
		}

		delay := r.delayFor(attempt, resp)

		// The response body of a failed attempt is not reused; drop it so
		// the transport can recycle the connection.
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if serr := r.sleep(ctx, delay); serr != nil {
			if err == nil {
				err = serr
			}
			return resp, attempts, err
		}
	}
}

func (r *retryer) delayFor(attempt int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
			return ra
		}
	}
	return backoff.Delay(attempt, r.policy.InitialDelay, r.policy.MaxDelay, r.policy.Multiplier, r.policy.Jitter)
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms, capped at
// one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		d := time.Duration(seconds) * time.Second
		if d > time.Hour {
			d = time.Hour
		}
		return d
	}

	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d > 0 && d <= time.Hour {
			return d
		}
	}

	return 0
}

// defaultTransportErrors are substrings matched against transport error text
// when the typed checks below do not apply.
var defaultTransportErrors = []string{
	"connection reset",
	"connection refused",
	"no such host",
	"broken pipe",
	"unexpected EOF",
}

// newRetryCondition builds the client's default retryability predicate from
// the policy's classified sets. An empty set keeps the defaults: statuses
// 429/500/502/503/504 and transport errors (reset, timeout, DNS failure).
func newRetryCondition(policy RetryPolicy) RetryCondition {
	statuses := make(map[int]bool, len(policy.RetryableStatus))
	for _, s := range policy.RetryableStatus {
		statuses[s] = true
	}
	errorCodes := policy.RetryableErrors

	return func(resp *http.Response, err error) bool {
		if err != nil {
			return isTransportError(err, errorCodes)
		}
		if resp == nil {
			return false
		}
		if len(statuses) > 0 {
			return statuses[resp.StatusCode]
		}
		return retryableStatus(resp.StatusCode)
	}
}

func isTransportError(err error, extraCodes []string) bool {
	if errors.Is(err, context.Canceled) {
		return false
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

	text := err.Error()
	for _, code := range extraCodes {
		if strings.Contains(text, code) {
			return true
		}
	}
	for _, code := range defaultTransportErrors {
		if strings.Contains(text, code) {
			return true
		}
	}
	return false
}
