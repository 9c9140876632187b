package rpcqueue

import (
	"context"
	"sync"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/metrics"
	"github.com/sirupsen/logrus"
)

// Registry owns one queue per chain. It is created at process start and torn
// down at shutdown; nothing else may touch the per-chain queue state.
type Registry struct {
	logger   *logrus.Logger
	recorder metrics.Recorder

	queuesMutex sync.RWMutex
	queues      map[string]*Queue
}

// NewRegistry creates an empty queue registry.
//
// Parameters:
// - logger: the logger shared by all queues.
// - recorder: the metrics recorder; nil uses a no-op recorder.
//
// Returns:
// - *Registry: a new Registry instance.
func NewRegistry(logger *logrus.Logger, recorder metrics.Recorder) *Registry {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}

	return &Registry{
		logger:   logger,
		recorder: recorder,
		queues:   make(map[string]*Queue),
	}
}

// Add creates and starts a queue for the given chain. Adding an existing
// chain is a no-op.
func (r *Registry) Add(ctx context.Context, chainKey string) {
	r.queuesMutex.Lock()
	defer r.queuesMutex.Unlock()

	if _, exists := r.queues[chainKey]; exists {
		return
	}

	queue := NewQueue(chainKey, r.logger, r.recorder)
	queue.Start(ctx)
	r.queues[chainKey] = queue
}

// Get returns the queue for a chain, or nil if none is registered.
func (r *Registry) Get(chainKey string) *Queue {
	r.queuesMutex.RLock()
	defer r.queuesMutex.RUnlock()
	return r.queues[chainKey]
}

// Enqueue schedules fn on the chain's queue and blocks until it has run.
//
// Parameters:
// - ctx: the context for this request.
// - chainKey: the chain whose queue should run the work.
// - fn: the unit of RPC work.
//
// Returns:
// - interface{}: the value returned by fn.
// - error: fn's error, or ErrChainNotFound if the chain has no queue.
func (r *Registry) Enqueue(ctx context.Context, chainKey string, fn Fn) (interface{}, error) {
	queue := r.Get(chainKey)
	if queue == nil {
		return nil, commonerrors.ErrChainNotFound
	}
	return queue.Enqueue(ctx, fn)
}

// Clear drops a chain's pending requests and resets its throttle counters by
// replacing the queue. Operator action only.
func (r *Registry) Clear(ctx context.Context, chainKey string) {
	r.queuesMutex.Lock()
	defer r.queuesMutex.Unlock()

	queue, exists := r.queues[chainKey]
	if !exists {
		return
	}
	queue.Stop()

	fresh := NewQueue(chainKey, r.logger, r.recorder)
	fresh.Start(ctx)
	r.queues[chainKey] = fresh
}

// Shutdown stops every queue. Pending requests fail with ErrQueueClosed.
func (r *Registry) Shutdown() {
	r.queuesMutex.Lock()
	defer r.queuesMutex.Unlock()

	for chainKey, queue := range r.queues {
		queue.Stop()
		delete(r.queues, chainKey)
	}
}
