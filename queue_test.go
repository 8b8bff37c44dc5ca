package etsyapi

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testQueue(t *testing.T, cfg QueueConfig) *requestQueue {
	t.Helper()
	q := newRequestQueue(cfg)
	t.Cleanup(q.close)
	return q
}

func TestQueueRunsTask(t *testing.T) {
	q := testQueue(t, QueueConfig{Concurrency: 2, Window: time.Second, MaxPerWindow: 100})

	resp, err := q.enqueue(context.Background(), func(context.Context) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestQueueTaskErrorDoesNotAffectOthers(t *testing.T) {
	q := testQueue(t, QueueConfig{Concurrency: 2, Window: time.Second, MaxPerWindow: 100})

	wantErr := errors.New("task failed")
	if _, err := q.enqueue(context.Background(), func(context.Context) (*Response, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want task error", err)
	}

	if _, err := q.enqueue(context.Background(), func(context.Context) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	}); err != nil {
		t.Errorf("subsequent task failed: %v", err)
	}
}

func TestQueueConcurrencyBound(t *testing.T) {
	const concurrency = 2
	q := testQueue(t, QueueConfig{Concurrency: concurrency, Window: time.Second, MaxPerWindow: 1000})

	var inFlight, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.enqueue(context.Background(), func(context.Context) (*Response, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					prev := atomic.LoadInt32(&maxSeen)
					if cur <= prev || atomic.CompareAndSwapInt32(&maxSeen, prev, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return &Response{StatusCode: 200}, nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxSeen); got > concurrency {
		t.Errorf("observed %d concurrent tasks, limit is %d", got, concurrency)
	}
}

func TestQueueFIFODispatchOrder(t *testing.T) {
	q := testQueue(t, QueueConfig{Concurrency: 1, Window: time.Second, MaxPerWindow: 1000})
	q.pause()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.enqueue(context.Background(), func(context.Context) (*Response, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return &Response{}, nil
			})
		}()
		// Wait for this submission to be queued before issuing the next so
		// submission order is well-defined.
		for {
			if q.stats().Queued > i {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	q.unpause()
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("dispatch order = %v, want FIFO", order)
		}
	}
}

func TestQueueWindowLimitsStartRate(t *testing.T) {
	// 2 starts allowed per 100ms window; starting the third waits for the
	// first start to age out of the window.
	q := testQueue(t, QueueConfig{Concurrency: 4, Window: 100 * time.Millisecond, MaxPerWindow: 2})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.enqueue(context.Background(), func(context.Context) (*Response, error) {
				return &Response{}, nil
			})
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("4 tasks with 2-per-100ms window finished in %v, expected at least one full window wait", elapsed)
	}
}

func TestQueueRollingWindowCap(t *testing.T) {
	const maxStarts = 5
	// Concurrency far above the window cap, so only the window throttles.
	q := testQueue(t, QueueConfig{Concurrency: 100, Window: 300 * time.Millisecond, MaxPerWindow: maxStarts})

	var mu sync.Mutex
	var starts []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.enqueue(context.Background(), func(context.Context) (*Response, error) {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return &Response{}, nil
			})
		}()
	}
	wg.Wait()

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	// Count starts over a slightly shortened span to absorb the scheduling
	// jitter between admission and the recorded timestamp.
	span := 280 * time.Millisecond
	for i := range starts {
		count := 0
		for j := i; j < len(starts) && starts[j].Sub(starts[i]) < span; j++ {
			count++
		}
		if count > maxStarts {
			t.Fatalf("%d task starts within %v, cap is %d per rolling window", count, span, maxStarts)
		}
	}
}

func TestQueueCancelWhileQueued(t *testing.T) {
	q := testQueue(t, QueueConfig{Concurrency: 1, Window: time.Second, MaxPerWindow: 1000})

	release := make(chan struct{})
	go func() {
		_, _ = q.enqueue(context.Background(), func(context.Context) (*Response, error) {
			<-release
			return &Response{}, nil
		})
	}()
	for q.stats().InFlight == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.enqueue(ctx, func(context.Context) (*Response, error) {
			t.Error("cancelled task must not be dispatched")
			return &Response{}, nil
		})
		done <- err
	}()
	// The dispatcher is blocked on the occupied concurrency slot; give the
	// second submission time to reach it, then cancel.
	time.Sleep(10 * time.Millisecond)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	close(release)
}

func TestQueueStats(t *testing.T) {
	q := testQueue(t, QueueConfig{Concurrency: 1, Window: time.Second, MaxPerWindow: 1000})

	release := make(chan struct{})
	go func() {
		_, _ = q.enqueue(context.Background(), func(context.Context) (*Response, error) {
			<-release
			return &Response{}, nil
		})
	}()
	for q.stats().InFlight != 1 {
		time.Sleep(time.Millisecond)
	}

	q.pause()
	if stats := q.stats(); !stats.Paused {
		t.Error("stats should report paused")
	}
	q.unpause()

	close(release)
	for q.stats().InFlight != 0 {
		time.Sleep(time.Millisecond)
	}
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	q := newRequestQueue(QueueConfig{Concurrency: 1, Window: time.Second, MaxPerWindow: 10})
	q.close()

	if _, err := q.enqueue(context.Background(), func(context.Context) (*Response, error) {
		return &Response{}, nil
	}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
}
