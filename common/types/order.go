package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the internal lifecycle state of a swap order.
type OrderStatus string

const (
	// OrderAwaitingDeposit is the initial state: the provider minted a deposit
	// address and no deposit has been observed yet.
	OrderAwaitingDeposit OrderStatus = "awaiting_deposit"
	// OrderProcessing indicates the provider observed the deposit and is
	// exchanging or sending funds.
	OrderProcessing OrderStatus = "processing"
	// OrderCompleted is the terminal success state.
	OrderCompleted OrderStatus = "completed"
	// OrderFailed is the terminal failure state (failed, refunded or expired
	// on the provider side).
	OrderFailed OrderStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// Order represents one in-flight swap. Rows are created by the order-creation
// flow and mutated exclusively through the reconciliation contract.
//
// Fields:
// - ID: the internal order identifier.
// - FromChain, FromAsset: what the payer sends.
// - ToChain, ToAsset: what the recipient receives.
// - FromAmount: the requested send amount in human units.
// - DepositAddress: the provider-minted address the payer sends funds to.
// - ExchangeID: the opaque reference id assigned by the swap provider.
// - RefundAddress: optional address for provider-side refunds.
// - Status: the current lifecycle state.
// - DepositTxHash: the payer's deposit transaction hash, once known.
// - PayoutTxHash: the provider's payout transaction hash, once known.
type Order struct {
	ID             int64
	FromChain      string
	FromAsset      string
	ToChain        string
	ToAsset        string
	FromAmount     decimal.Decimal
	DepositAddress string
	ExchangeID     string
	RefundAddress  string
	Status         OrderStatus
	DepositTxHash  string
	PayoutTxHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
