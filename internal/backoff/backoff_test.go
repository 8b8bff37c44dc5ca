package backoff

import (
	"testing"
	"time"
)

func TestDelayExponentialSequence(t *testing.T) {
	initial := 100 * time.Millisecond
	max := 10 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{10, 10 * time.Second}, // capped
	}

	for _, tt := range tests {
		got := Delay(tt.attempt, initial, max, 2.0, 0)
		if got != tt.want {
			t.Errorf("Delay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayNegativeAttempt(t *testing.T) {
	got := Delay(-5, 100*time.Millisecond, time.Second, 2.0, 0)
	if got != 100*time.Millisecond {
		t.Errorf("Delay(-5) = %v, want initial delay", got)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	initial := 100 * time.Millisecond
	max := 10 * time.Second

	for i := 0; i < 100; i++ {
		got := Delay(2, initial, max, 2.0, 0.5)
		base := 400 * time.Millisecond
		if got < base || got > base+base/2 {
			t.Fatalf("jittered delay %v outside [%v, %v]", got, base, base+base/2)
		}
	}
}

func TestDelayJitterClamped(t *testing.T) {
	// Out-of-range jitter values must not panic or exceed the cap.
	for _, jitter := range []float64{-1, 2} {
		got := Delay(3, 100*time.Millisecond, time.Second, 2.0, jitter)
		if got > time.Second {
			t.Errorf("Delay with jitter=%v = %v, exceeds cap", jitter, got)
		}
	}
}

func TestDelayLargeAttemptDoesNotOverflow(t *testing.T) {
	got := Delay(1000, time.Second, time.Minute, 2.0, 0)
	if got != time.Minute {
		t.Errorf("Delay(1000) = %v, want cap %v", got, time.Minute)
	}
}
