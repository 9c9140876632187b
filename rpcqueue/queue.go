// Package rpcqueue serializes RPC work per chain behind a throttled FIFO
// queue, keeping request volume under provider limits. Each chain owns one
// queue with its own dispatch loop; different chains proceed independently.
package rpcqueue

import (
	"context"
	"sync"
	"time"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// minRequestInterval is the minimum delay between two dispatched requests
	// on the same chain.
	minRequestInterval = 500 * time.Millisecond
	// maxRequestsPerWindow is the request ceiling within one rolling window.
	maxRequestsPerWindow = 10
	// windowDuration is the length of the rolling rate window. The window
	// resets this long after it was opened, independent of request count.
	windowDuration = 60 * time.Second
	// pendingCapacity bounds the number of queued requests per chain.
	pendingCapacity = 256
)

// Fn is an opaque unit of RPC work. The queue does not know what the call
// does; it only schedules it.
type Fn func(ctx context.Context) (interface{}, error)

type request struct {
	ctx      context.Context
	fn       Fn
	enqueued time.Time
	done     chan outcome
}

type outcome struct {
	result interface{}
	err    error
}

// Queue is the per-chain throttled FIFO dispatcher. Requests are serviced
// strictly in enqueue order, one at a time.
type Queue struct {
	chainKey string
	logger   *logrus.Logger
	recorder metrics.Recorder

	pending  chan *request
	stopChan chan struct{}
	stopOnce sync.Once

	// Clock hooks, replaced in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// Dispatch loop state, touched only by the loop goroutine after Start.
	lastDispatch time.Time
	windowStart  time.Time
	windowCount  int
}

// NewQueue creates a queue for one chain. Start must be called before Enqueue.
//
// Parameters:
// - chainKey: the chain identifier, used for logging and metrics.
// - logger: the logger for logging queue events.
// - recorder: the metrics recorder; nil uses a no-op recorder.
//
// Returns:
// - *Queue: a new Queue instance.
func NewQueue(chainKey string, logger *logrus.Logger, recorder metrics.Recorder) *Queue {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}

	return &Queue{
		chainKey: chainKey,
		logger:   logger,
		recorder: recorder,
		pending:  make(chan *request, pendingCapacity),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the dispatch loop. The loop runs until Stop is called or the
// context is cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.dispatchLoop(ctx)
}

// Stop shuts the queue down. Pending requests are failed with ErrQueueClosed.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
	})
}

// Enqueue schedules fn on the chain's queue and blocks until it has run or
// the request context is done.
//
// Parameters:
// - ctx: the context for this request; cancellation abandons the request.
// - fn: the unit of RPC work to run.
//
// Returns:
// - interface{}: the value returned by fn.
// - error: fn's error, ErrQueueClosed, or the context error.
func (q *Queue) Enqueue(ctx context.Context, fn Fn) (interface{}, error) {
	req := &request{
		ctx:      ctx,
		fn:       fn,
		enqueued: q.now(),
		done:     make(chan outcome, 1),
	}

	select {
	case q.pending <- req:
	case <-q.stopChan:
		return nil, commonerrors.ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-req.done:
		return out.result, out.err
	case <-q.stopChan:
		// The dispatch loop is shutting down; drain may still have delivered
		// an outcome for this request.
		select {
		case out := <-req.done:
			return out.result, out.err
		default:
			return nil, commonerrors.ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatchLoop services pending requests strictly in FIFO order, enforcing
// the minimum inter-request delay and the rolling window ceiling.
func (q *Queue) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Mark the queue closed so later Enqueue calls fail instead of
			// parking in pending with no loop left to service them.
			q.Stop()
			q.drain(ctx.Err())
			return
		case <-q.stopChan:
			q.drain(commonerrors.ErrQueueClosed)
			return
		case req := <-q.pending:
			q.dispatch(ctx, req)
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, req *request) {
	// The caller may have given up while the request was queued.
	if err := req.ctx.Err(); err != nil {
		req.done <- outcome{err: err}
		return
	}

	if err := q.throttle(ctx); err != nil {
		req.done <- outcome{err: err}
		return
	}

	q.windowCount++
	q.lastDispatch = q.now()
	q.recorder.ObserveQueueWait(q.chainKey, q.lastDispatch.Sub(req.enqueued))

	result, err := req.fn(req.ctx)
	req.done <- outcome{result: result, err: err}
}

// throttle blocks until the next request may be dispatched.
func (q *Queue) throttle(ctx context.Context) error {
	if !q.lastDispatch.IsZero() {
		if since := q.now().Sub(q.lastDispatch); since < minRequestInterval {
			if err := q.sleepFor(ctx, minRequestInterval-since); err != nil {
				return err
			}
		}
	}

	now := q.now()
	if q.windowStart.IsZero() || now.Sub(q.windowStart) >= windowDuration {
		q.windowStart = now
		q.windowCount = 0
	}

	if q.windowCount >= maxRequestsPerWindow {
		wait := q.windowStart.Add(windowDuration).Sub(now)
		q.logger.WithFields(logrus.Fields{
			"chain": q.chainKey,
			"wait":  wait,
		}).Warn("RPC request ceiling reached, waiting for window reset")

		if err := q.sleepFor(ctx, wait); err != nil {
			return err
		}
		q.windowStart = q.now()
		q.windowCount = 0
	}

	return nil
}

// drain fails every queued request with the given error.
func (q *Queue) drain(err error) {
	for {
		select {
		case req := <-q.pending:
			req.done <- outcome{err: err}
		default:
			return
		}
	}
}

func (q *Queue) sleepFor(ctx context.Context, d time.Duration) error {
	if q.sleep != nil {
		return q.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopChan:
		return commonerrors.ErrQueueClosed
	case <-timer.C:
		return nil
	}
}
