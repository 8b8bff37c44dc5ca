package etsyapi

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// queueTask is one unit of work submitted to the queue. The result channel
// is buffered so a caller that abandoned interest (context cancelled) never
// blocks delivery.
type queueTask struct {
	ctx context.Context
	run func(ctx context.Context) (*Response, error)
	res chan queueResult
}

type queueResult struct {
	resp *Response
	err  error
}

// requestQueue bounds how many requests are in flight and how many start
// within a rolling window. Dispatch start order is FIFO; completion order is
// not guaranteed. A single dispatcher goroutine takes the concurrency slot
// and the window admission before spawning each task, so later submissions
// can never overtake earlier ones.
type requestQueue struct {
	window       time.Duration
	maxPerWindow int

	// starts holds the dispatch-start times still inside the rolling
	// window. Dispatcher-only, no locking.
	starts []time.Time

	sem chan struct{}

	mu      sync.Mutex
	pending *list.List
	wake    chan struct{}
	paused  bool
	resume  chan struct{}

	inFlight int
	closed   bool
	done     chan struct{}
}

func newRequestQueue(cfg QueueConfig) *requestQueue {
	q := &requestQueue{
		window:       cfg.Window,
		maxPerWindow: cfg.MaxPerWindow,
		starts:       make([]time.Time, 0, cfg.MaxPerWindow),
		sem:          make(chan struct{}, cfg.Concurrency),
		pending:      list.New(),
		wake:         make(chan struct{}, 1),
		resume:       make(chan struct{}),
		done:         make(chan struct{}),
	}
	go q.dispatch()
	return q
}

// enqueue submits a task and waits for its result. A context cancelled while
// the task is still queued abandons it cooperatively; once dispatched the
// task runs to completion and the result is discarded.
func (q *requestQueue) enqueue(ctx context.Context, run func(ctx context.Context) (*Response, error)) (*Response, error) {
	t := &queueTask{
		ctx: ctx,
		run: run,
		res: make(chan queueResult, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.pending.PushBack(t)
	q.mu.Unlock()
	q.signal()

	select {
	case r := <-t.res:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *requestQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *requestQueue) dispatch() {
	for {
		t := q.next()
		if t == nil {
			return // closed and drained
		}

		// Skip tasks whose caller already gave up; keeps a dead head from
		// stalling the queue.
		if t.ctx.Err() != nil {
			t.res <- queueResult{err: t.ctx.Err()}
			continue
		}

		select {
		case q.sem <- struct{}{}:
		case <-t.ctx.Done():
			t.res <- queueResult{err: t.ctx.Err()}
			continue
		case <-q.done:
			t.res <- queueResult{err: ErrQueueClosed}
			continue
		}

		// Window admission happens after the slot is held, immediately
		// before the task is spawned, so the recorded start time is the
		// actual start time.
		if err := q.waitWindow(t.ctx); err != nil {
			<-q.sem
			t.res <- queueResult{err: err}
			continue
		}

		q.mu.Lock()
		q.inFlight++
		q.mu.Unlock()

		go func(t *queueTask) {
			resp, err := t.run(t.ctx)
			t.res <- queueResult{resp: resp, err: err}
			q.mu.Lock()
			q.inFlight--
			q.mu.Unlock()
			<-q.sem
		}(t)
	}
}

// waitWindow blocks until starting a task now keeps the number of dispatch
// starts within the rolling window at or below the cap, then records the
// start. A token bucket cannot express this: its initial burst plus refill
// admits up to twice the cap inside one window after an idle period.
func (q *requestQueue) waitWindow(ctx context.Context) error {
	for {
		now := time.Now()

		keep := 0
		for keep < len(q.starts) && now.Sub(q.starts[keep]) >= q.window {
			keep++
		}
		q.starts = append(q.starts[:0], q.starts[keep:]...)

		if len(q.starts) < q.maxPerWindow {
			q.starts = append(q.starts, now)
			return nil
		}

		// Full window: the next slot opens when the oldest start ages out.
		timer := time.NewTimer(q.window - now.Sub(q.starts[0]))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-q.done:
			timer.Stop()
			return ErrQueueClosed
		}
	}
}

// next blocks until a task is available (respecting pause) or the queue is
// closed with nothing left to drain.
func (q *requestQueue) next() *queueTask {
	for {
		q.mu.Lock()
		if q.paused && !q.closed {
			resume := q.resume
			q.mu.Unlock()
			select {
			case <-resume:
			case <-q.done:
			}
			continue
		}
		if front := q.pending.Front(); front != nil {
			q.pending.Remove(front)
			q.mu.Unlock()
			return front.Value.(*queueTask)
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil
		}
		select {
		case <-q.wake:
		case <-q.done:
		}
	}
}

// pause holds back dispatch of queued tasks; in-flight requests finish
// normally. Used by host apps to stop traffic during re-authorization.
func (q *requestQueue) pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.paused {
		q.paused = true
		q.resume = make(chan struct{})
	}
}

func (q *requestQueue) unpause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		q.paused = false
		close(q.resume)
	}
}

func (q *requestQueue) stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Queued:   q.pending.Len(),
		InFlight: q.inFlight,
		Paused:   q.paused,
	}
}

// close stops accepting work, fails queued tasks with ErrQueueClosed and
// stops the dispatcher. In-flight tasks run to completion.
func (q *requestQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for front := q.pending.Front(); front != nil; front = q.pending.Front() {
		q.pending.Remove(front)
		front.Value.(*queueTask).res <- queueResult{err: ErrQueueClosed}
	}
	q.mu.Unlock()
	close(q.done)
	q.signal()
}
