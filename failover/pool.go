// Package failover selects a live RPC endpoint from an ordered list.
// A connection is accepted only after a lightweight liveness probe succeeds;
// connectivity failures advance to the next endpoint with exponential backoff,
// and rate-limited endpoints are rotated out by the caller.
package failover

import (
	"context"
	"sync"
	"time"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/retry"
	"github.com/sirupsen/logrus"
)

// probeTimeout bounds the liveness probe on a freshly dialed endpoint.
const probeTimeout = 20 * time.Second

// Connection is a live connection to one RPC endpoint.
type Connection interface {
	// Probe performs a lightweight liveness check on the connection.
	Probe(ctx context.Context) error
	// Close releases the connection.
	Close()
}

// Connector dials one endpoint URL. Implementations wrap the chain-specific
// client (ethclient, solana rpc client).
type Connector interface {
	Dial(ctx context.Context, url string) (Connection, error)
}

// Pool tracks the ordered endpoint list for one chain and hands out probed
// connections, remembering which endpoint served last so rate-limited
// endpoints can be rotated out.
type Pool struct {
	chainName string
	urls      []string
	connector Connector
	policy    retry.Policy
	logger    *logrus.Logger

	currentMutex sync.Mutex
	current      int
}

// NewPool creates an endpoint pool for one chain.
//
// Parameters:
// - chainName: the chain name, used for logging only.
// - urls: the ordered endpoint list, primary first.
// - connector: the chain-specific dialer.
// - policy: the backoff policy applied between endpoint attempts.
// - logger: the logger for logging failover events.
//
// Returns:
// - *Pool: a new Pool instance.
func NewPool(chainName string, urls []string, connector Connector, policy retry.Policy, logger *logrus.Logger) *Pool {
	return &Pool{
		chainName: chainName,
		urls:      urls,
		connector: connector,
		policy:    policy,
		logger:    logger,
	}
}

// Size returns the number of configured endpoints.
func (p *Pool) Size() int {
	return len(p.urls)
}

// Rotate advances the pool to the next configured endpoint. Used when the
// current endpoint starts returning rate-limit responses.
func (p *Pool) Rotate() {
	p.currentMutex.Lock()
	defer p.currentMutex.Unlock()

	if len(p.urls) == 0 {
		return
	}
	p.current = (p.current + 1) % len(p.urls)
}

// Connect walks the endpoint list starting from the current endpoint and
// returns the first connection whose liveness probe succeeds. Backoff between
// attempts follows the pool's policy. When every endpoint fails, it returns
// ErrRPCUnavailable and the caller must not retry within the same attempt.
//
// Parameters:
// - ctx: the context bounding dialing, probing and backoff sleeps.
//
// Returns:
// - Connection: a probed, live connection.
// - error: ErrRPCUnavailable if all endpoints are exhausted.
func (p *Pool) Connect(ctx context.Context) (Connection, error) {
	if len(p.urls) == 0 {
		return nil, commonerrors.ErrInvalidConfig
	}

	p.currentMutex.Lock()
	start := p.current
	p.currentMutex.Unlock()

	for i := 0; i < len(p.urls); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if delay := p.policy.Delay(i + 1); delay > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		idx := (start + i) % len(p.urls)
		url := p.urls[idx]

		conn, err := p.connector.Dial(ctx, url)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"chain":    p.chainName,
				"endpoint": url,
			}).WithError(err).Warn("Failed to dial RPC endpoint, trying next")
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err = conn.Probe(probeCtx)
		cancel()

		if err != nil {
			conn.Close()
			p.logger.WithFields(logrus.Fields{
				"chain":    p.chainName,
				"endpoint": url,
			}).WithError(err).Warn("RPC endpoint failed liveness probe, trying next")
			continue
		}

		p.currentMutex.Lock()
		p.current = idx
		p.currentMutex.Unlock()

		return conn, nil
	}

	p.logger.WithField("chain", p.chainName).Error("All RPC endpoints exhausted")
	return nil, commonerrors.ErrRPCUnavailable
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) error {
	if p.policy.Sleep != nil {
		return p.policy.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
