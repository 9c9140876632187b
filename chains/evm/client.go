package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/FluxPay/paycore-lib/failover"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of the Ethereum client the verifier needs.
// *ethclient.Client satisfies it; tests use a fixture implementation.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*ethtypes.Block, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// connection wraps an ethclient as a failover.Connection. The liveness probe
// is a block number fetch.
type connection struct {
	client *ethclient.Client
}

func (c *connection) Probe(ctx context.Context) error {
	_, err := c.client.BlockNumber(ctx)
	return err
}

func (c *connection) Close() {
	c.client.Close()
}

// connector dials EVM endpoints for the failover pool.
type connector struct{}

func (connector) Dial(ctx context.Context, url string) (failover.Connection, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &connection{client: client}, nil
}

// rateLimitMarkers are substrings seen in rate-limit responses across common
// RPC providers (HTTP 403/429 and provider-specific error bodies).
var rateLimitMarkers = []string{
	"429",
	"403",
	"rate limit",
	"rate-limit",
	"too many requests",
	"limit exceeded",
	"exceeded the quota",
}

// isRateLimitError reports whether an RPC error looks like a rate-limit
// response rather than a connectivity failure.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
