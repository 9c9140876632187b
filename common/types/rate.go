package types

import (
	"github.com/shopspring/decimal"
)

// RateDirection anchors which side of a rate query carries the known amount.
type RateDirection string

const (
	// RateForward means the send amount is known and the receive amount is solved.
	RateForward RateDirection = "forward"
	// RateReverse means the receive amount is known and the send amount is solved.
	RateReverse RateDirection = "reverse"
)

// RateQuery describes a rate resolution request between two (chain, asset) pairs.
//
// Fields:
// - FromChain, FromAsset: the source side of the swap.
// - ToChain, ToAsset: the destination side of the swap.
// - Amount: the known amount, on the side selected by Direction.
// - Direction: which side Amount anchors.
type RateQuery struct {
	FromChain string          `validate:"required"`
	FromAsset string          `validate:"required"`
	ToChain   string          `validate:"required"`
	ToAsset   string          `validate:"required"`
	Amount    decimal.Decimal `validate:"required"`
	Direction RateDirection   `validate:"required,oneof=forward reverse"`
}

// SamePair reports whether source and destination are the same asset on the
// same chain, which is invalid for rate computation.
func (q *RateQuery) SamePair() bool {
	return q.FromChain == q.ToChain && q.FromAsset == q.ToAsset
}

// RateQuote is a resolved rate with the amount solved for the unknown side.
//
// Fields:
// - FromAmount: the amount the payer must send.
// - ToAmount: the estimated amount the recipient receives.
// - Rate: the provider's quoted exchange rate.
// - MinAmount, MaxAmount: the provider's bounds for the source amount.
// - Converged: false when the reverse solver returned a best-effort estimate
//   instead of converging within tolerance.
type RateQuote struct {
	FromAmount decimal.Decimal
	ToAmount   decimal.Decimal
	Rate       decimal.Decimal
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	Converged  bool
}
