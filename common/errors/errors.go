package errors

import "github.com/pkg/errors"

var (
	ErrChainNotFound    = errors.New("chain not found")
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidChainKey  = errors.New("invalid chain key")
	ErrInvalidAddress   = errors.New("invalid recipient address")
	ErrInvalidConfig    = errors.New("invalid chain configuration")
	ErrDatabaseConnect  = errors.New("failed to connect to database")
	ErrRPCUnavailable   = errors.New("all rpc endpoints unavailable")
	ErrRateLimited      = errors.New("rpc endpoint rate limited")
	ErrQuoteFailure     = errors.New("quote request failed")
	ErrUnsupported      = errors.New("verification not supported")
	ErrQueueClosed      = errors.New("rpc queue closed")
	ErrOrderNotFound    = errors.New("order not found")
	ErrRequestNotFound  = errors.New("payment request not found")
	ErrInvalidWebhook   = errors.New("invalid webhook payload")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrVerifierNotFound = errors.New("verifier not found for chain")
)
