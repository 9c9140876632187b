package types

import (
	"context"
)

// ChainConfig holds the static configuration for a supported chain.
// It is loaded once at process start and treated as immutable afterwards.
//
// Fields:
// - Key: the internal chain identifier (e.g. "eth", "bnb", "sol").
// - Name: the human-readable chain name.
// - ChainType: the type of the chain (EVM or SOLANA).
// - RpcUrls: the ordered list of RPC endpoint URLs, primary first.
// - NativeSymbol: the symbol of the chain's native asset.
// - NativeDecimals: the decimals of the chain's native asset.
// - AvgBlockTime: the average block time in seconds, used for lookback estimation.
type ChainConfig struct {
	Key            string
	Name           string
	ChainType      ChainType
	RpcUrls        []string
	NativeSymbol   string
	NativeDecimals int
	AvgBlockTime   float64
}

// TokenConfig holds the per-chain configuration of a verifiable token.
//
// Fields:
// - ChainKey: the chain the token lives on.
// - Symbol: the token symbol (e.g. "USDT").
// - ContractAddress: the token contract address.
// - Decimals: the token decimals used to convert raw transfer values.
type TokenConfig struct {
	ChainKey        string
	Symbol          string
	ContractAddress string
	Decimals        int
}

// TransferVerifier decides whether a qualifying inbound transfer satisfies
// a verification query on one chain, without relying on an indexer.
type TransferVerifier interface {
	// VerifyTransfer scans the chain's recent history for an inbound transfer
	// matching the query.
	//
	// Parameters:
	// - ctx: the context bounding the whole verification attempt.
	// - query: the verification query describing the expected transfer.
	//
	// Returns:
	// - *VerificationResult: the verification outcome, never nil on nil error.
	// - error: an error only for setup-level failures (all endpoints exhausted).
	VerifyTransfer(ctx context.Context, query *VerificationQuery) (*VerificationResult, error)

	// Close releases any connections held by the verifier.
	Close()
}

// VerifierRegistry manages transfer verifiers for multiple chains.
type VerifierRegistry interface {
	// Add creates and registers a verifier for the given chain configuration
	// and its verifiable tokens.
	Add(ctx context.Context, config *ChainConfig, tokens []TokenConfig) error

	// Get retrieves a verifier from the registry by chain key.
	Get(chainKey string) TransferVerifier

	// Remove removes a verifier from the registry by chain key and closes it.
	Remove(chainKey string)
}
