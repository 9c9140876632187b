package solana

import (
	"context"
	"strings"
	"sync"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/retry"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/failover"
	"github.com/FluxPay/paycore-lib/rpcqueue"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// signatureLimit is the maximum number of recent signatures scanned per
	// verification attempt.
	signatureLimit = 1000
	// lamportsPerSol is the number of lamports in one SOL.
	lamportsPerSol = 1_000_000_000
)

// ValidateAddress reports whether s is a plausible Solana address: a base58
// string of 32 to 44 characters decoding to a public key.
func ValidateAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	_, err := sol.PublicKeyFromBase58(s)
	return err == nil
}

// solana verifies inbound SOL transfers by walking the recipient's recent
// signature history through the chain's throttled RPC queue. SPL token
// verification is explicitly unsupported.
type solana struct {
	config *types.ChainConfig
	queue  *rpcqueue.Queue
	pool   *failover.Pool
	logger *logrus.Logger

	backendMutex sync.Mutex
	backend      Backend
	closer       func()
}

// NewVerifier creates a Solana transfer verifier.
//
// Parameters:
// - config: the chain configuration, including the ordered endpoint list.
// - queue: the chain's RPC queue; every node call is dispatched through it.
// - logger: the logger for logging scan events.
//
// Returns:
// - types.TransferVerifier: a new Solana verifier instance.
func NewVerifier(config *types.ChainConfig, queue *rpcqueue.Queue, logger *logrus.Logger) types.TransferVerifier {
	return &solana{
		config: config,
		queue:  queue,
		pool:   failover.NewPool(config.Name, config.RpcUrls, connector{}, retry.DefaultPolicy(), logger),
		logger: logger,
	}
}

// VerifyTransfer scans the recipient's recent signatures for a successful
// native transfer satisfying the query.
func (s *solana) VerifyTransfer(ctx context.Context, query *types.VerificationQuery) (*types.VerificationResult, error) {
	if !ValidateAddress(query.Recipient) {
		return types.Unverified(s.config.Key, types.ReasonInvalidAddress,
			"recipient is not a valid Solana address"), nil
	}

	if !strings.EqualFold(query.Asset, types.NativeAsset) &&
		!strings.EqualFold(query.Asset, s.config.NativeSymbol) {
		return types.Unverified(s.config.Key, types.ReasonUnsupported,
			"SPL token verification is not supported"), nil
	}

	backend, err := s.liveBackend(ctx)
	if err != nil {
		if errors.Is(err, commonerrors.ErrRPCUnavailable) {
			return types.Unverified(s.config.Key, types.ReasonRPCUnavailable,
				"all RPC endpoints failed"), nil
		}
		return nil, err
	}

	return s.verifyNative(ctx, backend, query)
}

// Close releases the cached RPC connection.
func (s *solana) Close() {
	s.backendMutex.Lock()
	defer s.backendMutex.Unlock()

	if s.closer != nil {
		s.closer()
	}
	s.backend = nil
	s.closer = nil
}

// liveBackend returns the cached connection or establishes one through the
// failover pool.
func (s *solana) liveBackend(ctx context.Context) (Backend, error) {
	s.backendMutex.Lock()
	defer s.backendMutex.Unlock()

	if s.backend != nil {
		return s.backend, nil
	}

	result, err := s.call(ctx, func(ctx context.Context) (interface{}, error) {
		return s.pool.Connect(ctx)
	})
	if err != nil {
		return nil, err
	}

	conn := result.(*connection)
	s.backend = conn
	s.closer = conn.Close

	return s.backend, nil
}

// call dispatches one unit of RPC work on the chain's queue. A nil queue
// (tests) runs the work directly.
func (s *solana) call(ctx context.Context, fn rpcqueue.Fn) (interface{}, error) {
	if s.queue == nil {
		return fn(ctx)
	}
	return s.queue.Enqueue(ctx, fn)
}
