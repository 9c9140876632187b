package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// NativeAsset is the sentinel asset symbol for a chain's native currency.
const NativeAsset = "native"

// FailReason classifies a negative or failed verification outcome.
type FailReason string

const (
	// ReasonNoMatch indicates no qualifying transfer was found in the scanned window.
	// This is a normal negative outcome, not an error.
	ReasonNoMatch FailReason = "no_match"
	// ReasonInvalidAddress indicates the recipient address failed validation.
	ReasonInvalidAddress FailReason = "invalid_address"
	// ReasonRPCUnavailable indicates all configured RPC endpoints were exhausted.
	ReasonRPCUnavailable FailReason = "rpc_unavailable"
	// ReasonRateLimited indicates the RPC fleet rejected the attempt for rate limiting.
	ReasonRateLimited FailReason = "rate_limited"
	// ReasonUnsupported indicates the requested verification is explicitly out of scope
	// (e.g. SPL token transfers on Solana).
	ReasonUnsupported FailReason = "unsupported"
)

// VerificationQuery describes one verification attempt. It is constructed per
// attempt and never persisted.
//
// Fields:
// - ChainKey: the chain to scan.
// - Recipient: the address expected to have received the transfer.
// - Amount: the required amount in human units.
// - Asset: the asset symbol, or NativeAsset for the chain's native currency.
// - SinceTimestamp: optional lower bound in epoch milliseconds; zero means unbounded.
type VerificationQuery struct {
	ChainKey       string          `validate:"required"`
	Recipient      string          `validate:"required"`
	Amount         decimal.Decimal `validate:"required"`
	Asset          string          `validate:"required"`
	SinceTimestamp int64           `validate:"gte=0"`
}

// Since returns the query's lower time bound, or the zero time if unbounded.
func (q *VerificationQuery) Since() time.Time {
	if q.SinceTimestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(q.SinceTimestamp)
}

// Tolerance returns the allowed shortfall for the query's required amount:
// an absolute floor of 0.0001 plus 1% relative slack, compensating for
// rounding on the provider side.
func (q *VerificationQuery) Tolerance() decimal.Decimal {
	floor := decimal.NewFromFloat(0.0001)
	relative := q.Amount.Mul(decimal.NewFromFloat(0.01))
	if relative.GreaterThan(floor) {
		return relative
	}
	return floor
}

// VerificationResult is the outcome of one verification attempt.
//
// Fields:
// - Verified: true if a qualifying, successful transfer was found.
// - TxHash: the hash of the matching transaction.
// - Amount: the observed transfer amount in human units.
// - From: the sender address, when known.
// - To: the recipient address of the matching transfer.
// - ChainKey: the chain the transfer was found on.
// - BlockRef: the block number or slot the transfer was included in.
// - Timestamp: the block time of the matching transfer.
// - TokenSymbol: set for token transfers, empty for native transfers.
// - Reason: on failure, the machine-readable reason code.
// - Message: on failure, a human-readable explanation.
type VerificationResult struct {
	Verified    bool
	TxHash      string
	Amount      decimal.Decimal
	From        string
	To          string
	ChainKey    string
	BlockRef    uint64
	Timestamp   time.Time
	TokenSymbol string
	Reason      FailReason
	Message     string
}

// Unverified builds a negative result with the given reason and message.
func Unverified(chainKey string, reason FailReason, message string) *VerificationResult {
	return &VerificationResult{
		Verified: false,
		ChainKey: chainKey,
		Reason:   reason,
		Message:  message,
	}
}
