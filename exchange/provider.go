package exchange

import (
	"context"
	"time"

	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/shopspring/decimal"
)

// DepositAddressRequest describes one swap creation request against the
// external provider.
//
// Fields:
// - FromChain, FromAsset: the side the payer sends on.
// - ToChain, ToAsset: the side the seller receives on.
// - Amount: the send amount in human units.
// - Recipient: the seller's receive address.
// - RefundAddress: the payer's refund address for failed swaps.
type DepositAddressRequest struct {
	FromChain     string          `validate:"required"`
	FromAsset     string          `validate:"required"`
	ToChain       string          `validate:"required"`
	ToAsset       string          `validate:"required"`
	Amount        decimal.Decimal `validate:"required"`
	Recipient     string          `validate:"required"`
	RefundAddress string
}

// DepositAddress is the provider's answer to a swap creation request.
//
// Fields:
// - DepositAddress: the provider-minted address the payer sends funds to.
// - ExchangeID: the provider's opaque reference id for the in-flight swap.
// - EstimatedAmount: the estimated receive amount.
// - Rate: the quoted exchange rate.
// - ValidUntil: when the quote behind the deposit address expires.
type DepositAddress struct {
	DepositAddress  string
	ExchangeID      string
	EstimatedAmount decimal.Decimal
	Rate            decimal.Decimal
	ValidUntil      time.Time
}

// Status is one provider status observation for an in-flight swap. Status
// carries the provider's raw vocabulary; MapStatus translates it.
type Status struct {
	Status        string
	DepositTxHash string
	PayoutTxHash  string
}

// Provider is the external swap-provider client surface the reconciler and
// order flow depend on.
type Provider interface {
	// CreateDepositAddress opens a swap with the provider and returns the
	// deposit address the payer must fund.
	CreateDepositAddress(ctx context.Context, req *DepositAddressRequest) (*DepositAddress, error)

	// GetStatusByReferenceID polls the provider for the current status of an
	// in-flight swap.
	GetStatusByReferenceID(ctx context.Context, referenceID string) (*Status, error)

	// GetQuote requests a forward quote for the pair and amount in the query.
	GetQuote(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error)
}
