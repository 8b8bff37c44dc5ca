package etsyapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func newTestRetryer(policy RetryPolicy) (*retryer, *[]time.Duration) {
	r := newRetryer(policy)
	slept := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return r, slept
}

func stubResponse(status int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

func TestRetryerSucceedsFirstAttempt(t *testing.T) {
	r, slept := newTestRetryer(RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2})

	calls := 0
	resp, attempts, err := r.do(context.Background(), func(*http.Response, error) bool { return true }, func(context.Context) (*http.Response, error) {
		calls++
		return stubResponse(200, nil), nil
	})
	if err != nil {
		t.Fatalf("do returned error: %v", err)
	}
	if resp.StatusCode != 200 || calls != 1 || attempts != 1 {
		t.Errorf("got status=%d calls=%d attempts=%d", resp.StatusCode, calls, attempts)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no sleeps", *slept)
	}
}

func TestRetryerExponentialDelaySequence(t *testing.T) {
	r, slept := newTestRetryer(RetryPolicy{MaxAttempts: 4, InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2})

	_, attempts, _ := r.do(context.Background(), func(*http.Response, error) bool { return true }, func(context.Context) (*http.Response, error) {
		return stubResponse(500, nil), nil
	})

	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(*slept), len(want))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestRetryerRetryAfterOverridesDelay(t *testing.T) {
	r, slept := newTestRetryer(RetryPolicy{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2})

	calls := 0
	_, _, _ = r.do(context.Background(), func(*http.Response, error) bool { return true }, func(context.Context) (*http.Response, error) {
		calls++
		if calls == 1 {
			h := http.Header{}
			h.Set("Retry-After", "2")
			return stubResponse(429, h), nil
		}
		return stubResponse(500, nil), nil
	})

	if len(*slept) < 2 {
		t.Fatalf("slept %d times, want 2", len(*slept))
	}
	// First delay is the server-supplied value verbatim; the second falls
	// back to the computed backoff for its attempt number.
	if (*slept)[0] != 2*time.Second {
		t.Errorf("delay[0] = %v, want 2s", (*slept)[0])
	}
	if (*slept)[1] != 200*time.Millisecond {
		t.Errorf("delay[1] = %v, want 200ms", (*slept)[1])
	}
}

func TestRetryerStopsWhenConditionFalse(t *testing.T) {
	r, slept := newTestRetryer(RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2})

	calls := 0
	resp, _, err := r.do(context.Background(), func(resp *http.Response, _ error) bool {
		return resp == nil || resp.StatusCode != 404
	}, func(context.Context) (*http.Response, error) {
		calls++
		return stubResponse(404, nil), nil
	})
	if err != nil {
		t.Fatalf("do returned error: %v", err)
	}
	if calls != 1 || resp.StatusCode != 404 {
		t.Errorf("calls=%d status=%d, want a single attempt returning 404", calls, resp.StatusCode)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want none", *slept)
	}
}

func TestRetryerPropagatesFinalError(t *testing.T) {
	r, _ := newTestRetryer(RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2})

	wantErr := errors.New("connection reset by peer")
	_, attempts, err := r.do(context.Background(), func(*http.Response, error) bool { return true }, func(context.Context) (*http.Response, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want the original error unchanged", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{" 10 ", 10 * time.Second},
		{"0", 0},
		{"-1", 0},
		{"garbage", 0},
		{"7200", time.Hour}, // capped
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	date := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(date)
	if got <= 0 || got > 31*time.Second {
		t.Errorf("parseRetryAfter(date) = %v, want ~30s", got)
	}
}

func TestDefaultRetryCondition(t *testing.T) {
	cond := newRetryCondition(RetryPolicy{})

	for _, status := range []int{429, 500, 502, 503, 504} {
		if !cond(stubResponse(status, nil), nil) {
			t.Errorf("status %d should be retryable", status)
		}
	}
	for _, status := range []int{200, 201, 400, 401, 403, 404} {
		if cond(stubResponse(status, nil), nil) {
			t.Errorf("status %d should not be retryable", status)
		}
	}

	if !cond(nil, errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset should be retryable")
	}
	if !cond(nil, context.DeadlineExceeded) {
		t.Error("deadline exceeded should be retryable")
	}
	if cond(nil, context.Canceled) {
		t.Error("context cancellation should not be retryable")
	}
}

func TestRetryConditionCustomSets(t *testing.T) {
	cond := newRetryCondition(RetryPolicy{
		RetryableStatus: []int{418},
		RetryableErrors: []string{"weird backend hiccup"},
	})

	if !cond(stubResponse(418, nil), nil) {
		t.Error("configured status 418 should be retryable")
	}
	if cond(stubResponse(500, nil), nil) {
		t.Error("status 500 should not be retryable when the set is replaced")
	}
	if !cond(nil, errors.New("weird backend hiccup on shard 3")) {
		t.Error("configured error code should be retryable")
	}
}
