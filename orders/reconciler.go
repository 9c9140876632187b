package orders

import (
	"context"
	"sync"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/exchange"
	"github.com/FluxPay/paycore-lib/metrics"
	"github.com/sirupsen/logrus"
)

// Reconciler merges provider status observations into persisted orders.
// Transitions are idempotent and monotonic: a repeated observation is a
// no-op, and a terminal order never moves again.
type Reconciler struct {
	store    Store
	provider exchange.Provider
	recorder metrics.Recorder
	logger   *logrus.Logger

	// locks serializes reconciliation per order so concurrent pollers and
	// webhooks cannot interleave writes for the same row.
	locksMutex sync.Mutex
	locks      map[int64]*sync.Mutex
}

// NewReconciler creates a reconciler.
//
// Parameters:
// - store: the order persistence surface.
// - provider: the swap provider client used for status polls.
// - recorder: the metrics recorder; nil uses a no-op recorder.
// - logger: the logger for logging purposes.
//
// Returns:
// - *Reconciler: a new Reconciler instance.
func NewReconciler(store Store, provider exchange.Provider, recorder metrics.Recorder, logger *logrus.Logger) *Reconciler {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}

	return &Reconciler{
		store:    store,
		provider: provider,
		recorder: recorder,
		logger:   logger,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Reconcile polls the provider for the order's current status and applies it.
//
// A provider outage is non-fatal: the order's cached state is returned
// unchanged. Orders without a provider reference id have nothing to poll and
// pass through untouched.
//
// Parameters:
// - ctx: the context for this request.
// - order: the order to reconcile, as currently persisted.
//
// Returns:
// - *types.Order: the order after reconciliation.
// - error: an error only when a persistence write fails.
func (r *Reconciler) Reconcile(ctx context.Context, order *types.Order) (*types.Order, error) {
	if order.ExchangeID == "" || order.Status.IsTerminal() {
		return order, nil
	}

	lock := r.orderLock(order.ID)
	lock.Lock()
	defer lock.Unlock()

	observed, err := r.provider.GetStatusByReferenceID(ctx, order.ExchangeID)
	if err != nil {
		// Serve the last known status rather than failing the read path.
		r.logger.WithFields(logrus.Fields{
			"orderId":    order.ID,
			"exchangeId": order.ExchangeID,
		}).WithError(err).Warn("Provider unreachable, serving cached order status")
		return order, nil
	}

	result, err := r.apply(ctx, order, observed)
	if err == nil && result.Status.IsTerminal() {
		r.releaseLock(order.ID)
	}
	return result, err
}

// HandleProviderStatus applies a provider-pushed status to every order
// carrying the reference id. This is the webhook entry point.
//
// Parameters:
// - ctx: the context for this request.
// - referenceID: the provider's reference id from the webhook payload.
// - providerStatus: the provider's status vocabulary from the payload.
//
// Returns:
// - error: ErrOrderNotFound if no order carries the reference id, or a
//   persistence error.
func (r *Reconciler) HandleProviderStatus(ctx context.Context, referenceID, providerStatus string) error {
	matches, err := r.store.GetOrdersByReferenceID(ctx, referenceID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return commonerrors.ErrOrderNotFound
	}

	observed := &exchange.Status{Status: providerStatus}
	for _, order := range matches {
		lock := r.orderLock(order.ID)
		lock.Lock()
		result, err := r.apply(ctx, order, observed)
		if err == nil && result.Status.IsTerminal() {
			r.releaseLock(order.ID)
		}
		lock.Unlock()

		if err != nil {
			return err
		}
	}

	return nil
}

// apply merges one status observation into the order. The caller must hold
// the order's lock.
func (r *Reconciler) apply(ctx context.Context, order *types.Order, observed *exchange.Status) (*types.Order, error) {
	next := exchange.MapStatus(observed.Status)

	if order.Status.IsTerminal() {
		return order, nil
	}
	if next == order.Status {
		// Same status observed again: idempotent no-op, no persistence write.
		return order, nil
	}
	if statusRank(next) < statusRank(order.Status) {
		// The provider's vocabulary can lag behind our state (e.g. a stale
		// "waiting" after we saw "exchanging"). Never move backwards.
		r.logger.WithFields(logrus.Fields{
			"orderId":        order.ID,
			"status":         order.Status,
			"providerStatus": observed.Status,
		}).Debug("Ignoring backward status observation")
		return order, nil
	}

	updated := *order
	updated.Status = next
	updated.DepositTxHash = firstNonEmpty(observed.DepositTxHash, order.DepositTxHash)
	updated.PayoutTxHash = firstNonEmpty(observed.PayoutTxHash, order.PayoutTxHash)

	if err := r.store.UpdateOrderStatus(ctx, order.ID, updated.Status, updated.DepositTxHash, updated.PayoutTxHash); err != nil {
		// The write failed: the persisted row still holds the previous
		// known-good state, so that is what callers get back.
		return order, err
	}

	r.recorder.IncOrderTransition(string(order.Status), string(next))
	r.logger.WithFields(logrus.Fields{
		"orderId": order.ID,
		"from":    order.Status,
		"to":      next,
	}).Info("Order status transitioned")

	return &updated, nil
}

func (r *Reconciler) orderLock(id int64) *sync.Mutex {
	r.locksMutex.Lock()
	defer r.locksMutex.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

// releaseLock drops the order's lock entry so the map does not grow with
// every order ever reconciled. A goroutine that already holds the old mutex
// can still finish; the order is terminal by then, so apply is a no-op and
// the overlap is harmless.
func (r *Reconciler) releaseLock(id int64) {
	r.locksMutex.Lock()
	defer r.locksMutex.Unlock()

	delete(r.locks, id)
}

// statusRank orders lifecycle states for the monotonicity guard.
func statusRank(s types.OrderStatus) int {
	switch s {
	case types.OrderAwaitingDeposit:
		return 0
	case types.OrderProcessing:
		return 1
	default:
		return 2
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
