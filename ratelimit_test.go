package etsyapi

import (
	"net/http"
	"testing"
	"time"
)

func TestRateLimitTrackerUpdate(t *testing.T) {
	tr := newRateLimitTracker(nil)

	h := http.Header{}
	h.Set("X-RateLimit-Limit", "10000")
	h.Set("X-RateLimit-Remaining", "9987")
	h.Set("X-RateLimit-Reset", "3600")
	tr.update(h)

	info := tr.snapshot()
	if info.Limit != 10000 {
		t.Errorf("Limit = %d, want 10000", info.Limit)
	}
	if info.Remaining != 9987 {
		t.Errorf("Remaining = %d, want 9987", info.Remaining)
	}
	wantReset := time.Now().Add(time.Hour)
	if d := info.ResetAt.Sub(wantReset); d < -5*time.Second || d > 5*time.Second {
		t.Errorf("ResetAt = %v, want about %v", info.ResetAt, wantReset)
	}
}

func TestRateLimitTrackerEpochReset(t *testing.T) {
	tr := newRateLimitTracker(nil)

	h := http.Header{}
	h.Set("X-RateLimit-Reset", "1700000000")
	tr.update(h)
	if got := tr.snapshot().ResetAt; !got.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("ResetAt = %v, want epoch interpretation", got)
	}
}

func TestRateLimitTrackerMissingHeadersPreserveValues(t *testing.T) {
	tr := newRateLimitTracker(nil)

	h := http.Header{}
	h.Set("X-RateLimit-Limit", "10000")
	h.Set("X-RateLimit-Remaining", "500")
	tr.update(h)

	// Next response carries only the remaining count.
	h2 := http.Header{}
	h2.Set("X-RateLimit-Remaining", "499")
	tr.update(h2)

	info := tr.snapshot()
	if info.Limit != 10000 {
		t.Errorf("Limit = %d, want preserved 10000", info.Limit)
	}
	if info.Remaining != 499 {
		t.Errorf("Remaining = %d, want 499", info.Remaining)
	}
}

func TestRateLimitTrackerNoHeadersNoObserver(t *testing.T) {
	calls := 0
	tr := newRateLimitTracker(func(RateLimitInfo) { calls++ })

	tr.update(http.Header{})
	if calls != 0 {
		t.Errorf("observer called %d times for headerless response, want 0", calls)
	}
}

func TestRateLimitTrackerObserver(t *testing.T) {
	var seen []RateLimitInfo
	tr := newRateLimitTracker(func(info RateLimitInfo) { seen = append(seen, info) })

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "42")
	tr.update(h)

	if len(seen) != 1 {
		t.Fatalf("observer called %d times, want 1", len(seen))
	}
	if seen[0].Remaining != 42 {
		t.Errorf("Remaining = %d, want 42", seen[0].Remaining)
	}
}

func TestRateLimitTrackerMalformedHeaderIgnored(t *testing.T) {
	tr := newRateLimitTracker(nil)

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "100")
	tr.update(h)

	h2 := http.Header{}
	h2.Set("X-RateLimit-Remaining", "not-a-number")
	tr.update(h2)

	if got := tr.snapshot().Remaining; got != 100 {
		t.Errorf("Remaining = %d, want preserved 100", got)
	}
}
