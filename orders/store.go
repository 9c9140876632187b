package orders

import (
	"context"

	"github.com/FluxPay/paycore-lib/common/types"
)

// Store is the persistence surface the reconciler depends on. The order row
// is owned by the persistence layer; reconciliation only ever replaces the
// (status, depositTxHash, payoutTxHash) triple in a single write.
type Store interface {
	// GetOrderByID fetches one order by its internal id.
	GetOrderByID(ctx context.Context, id int64) (*types.Order, error)

	// GetOrdersByReferenceID fetches all orders carrying the given provider
	// reference id.
	GetOrdersByReferenceID(ctx context.Context, referenceID string) ([]*types.Order, error)

	// UpdateOrderStatus atomically replaces the order's status and transaction
	// hashes.
	UpdateOrderStatus(ctx context.Context, id int64, status types.OrderStatus, depositTxHash, payoutTxHash string) error
}
