package evm

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/retry"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/failover"
	"github.com/FluxPay/paycore-lib/rpcqueue"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// blockStride is the chunk size of the backward native scan.
	blockStride = 10
	// nativeLookbackCap bounds the native scan regardless of elapsed time.
	nativeLookbackCap = 1000
	// tokenLookbackCap bounds the token log scan regardless of elapsed time.
	tokenLookbackCap = 1500
	// defaultLookback is the conservative window used when the query carries
	// no timestamp.
	defaultLookback = 100
	// lookbackBufferCap caps the 20% safety buffer added to the elapsed-time
	// block estimate.
	lookbackBufferCap = 100
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress reports whether s is a well-formed EVM address:
// 0x followed by 40 hex characters, case-insensitive.
func ValidateAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// evm verifies inbound transfers on an EVM-family chain by scanning recent
// blocks and Transfer logs through the chain's throttled RPC queue.
type evm struct {
	config *types.ChainConfig
	tokens map[string]types.TokenConfig
	queue  *rpcqueue.Queue
	pool   *failover.Pool
	logger *logrus.Logger

	backendMutex sync.Mutex
	backend      Backend
	closer       func()
}

// NewVerifier creates an EVM transfer verifier for one chain.
//
// Parameters:
// - config: the chain configuration, including the ordered endpoint list.
// - tokens: the verifiable tokens on this chain.
// - queue: the chain's RPC queue; every node call is dispatched through it.
// - logger: the logger for logging scan events.
//
// Returns:
// - types.TransferVerifier: a new EVM verifier instance.
func NewVerifier(
	config *types.ChainConfig,
	tokens []types.TokenConfig,
	queue *rpcqueue.Queue,
	logger *logrus.Logger,
) types.TransferVerifier {
	tokenMap := make(map[string]types.TokenConfig, len(tokens))
	for _, token := range tokens {
		tokenMap[strings.ToUpper(token.Symbol)] = token
	}

	return &evm{
		config: config,
		tokens: tokenMap,
		queue:  queue,
		pool:   failover.NewPool(config.Name, config.RpcUrls, connector{}, retry.DefaultPolicy(), logger),
		logger: logger,
	}
}

// VerifyTransfer scans for an inbound transfer satisfying the query.
// It never returns an error for a negative outcome; "no qualifying transfer"
// is a normal unverified result.
func (e *evm) VerifyTransfer(ctx context.Context, query *types.VerificationQuery) (*types.VerificationResult, error) {
	if !ValidateAddress(query.Recipient) {
		return types.Unverified(e.config.Key, types.ReasonInvalidAddress,
			"recipient is not a valid EVM address"), nil
	}

	backend, err := e.liveBackend(ctx)
	if err != nil {
		if errors.Is(err, commonerrors.ErrRPCUnavailable) {
			return types.Unverified(e.config.Key, types.ReasonRPCUnavailable,
				"all RPC endpoints failed"), nil
		}
		return nil, err
	}

	if strings.EqualFold(query.Asset, types.NativeAsset) ||
		strings.EqualFold(query.Asset, e.config.NativeSymbol) {
		return e.verifyNative(ctx, backend, query)
	}
	return e.verifyToken(ctx, backend, query)
}

// Close releases the cached RPC connection.
func (e *evm) Close() {
	e.backendMutex.Lock()
	defer e.backendMutex.Unlock()

	if e.closer != nil {
		e.closer()
	}
	e.backend = nil
	e.closer = nil
}

// liveBackend returns the cached connection or establishes one through the
// failover pool. Connection setup is itself dispatched on the chain's queue.
func (e *evm) liveBackend(ctx context.Context) (Backend, error) {
	e.backendMutex.Lock()
	defer e.backendMutex.Unlock()

	if e.backend != nil {
		return e.backend, nil
	}

	result, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
		return e.pool.Connect(ctx)
	})
	if err != nil {
		return nil, err
	}

	conn := result.(*connection)
	e.backend = conn.client
	e.closer = conn.Close

	return e.backend, nil
}

// rotateBackend drops the cached connection and reconnects on the next
// configured endpoint. Used when the current endpoint rate-limits us.
func (e *evm) rotateBackend(ctx context.Context) (Backend, error) {
	e.backendMutex.Lock()
	if e.closer != nil {
		e.closer()
	}
	e.backend = nil
	e.closer = nil
	e.backendMutex.Unlock()

	e.pool.Rotate()
	return e.liveBackend(ctx)
}

// call dispatches one unit of RPC work on the chain's queue. A nil queue
// (tests) runs the work directly.
func (e *evm) call(ctx context.Context, fn rpcqueue.Fn) (interface{}, error) {
	if e.queue == nil {
		return fn(ctx)
	}
	return e.queue.Enqueue(ctx, fn)
}

// scanWindow computes how many blocks back the scan should reach. With a
// timestamp, the window derives from elapsed time over the chain's average
// block time plus a 20% buffer (capped at lookbackBufferCap), bounded by the
// per-path cap. Without a timestamp, a fixed conservative window is used.
func (e *evm) scanWindow(since time.Time, maxBlocks uint64) uint64 {
	if since.IsZero() {
		return defaultLookback
	}

	avgBlockTime := e.config.AvgBlockTime
	if avgBlockTime <= 0 {
		avgBlockTime = 12
	}

	elapsed := time.Since(since).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	estimate := uint64(elapsed / avgBlockTime)
	buffer := estimate / 5
	if buffer > lookbackBufferCap {
		buffer = lookbackBufferCap
	}

	window := estimate + buffer
	if window > maxBlocks {
		window = maxBlocks
	}
	if window < blockStride {
		window = blockStride
	}
	return window
}
