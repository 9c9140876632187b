package verifier

import (
	"context"
	"sync"

	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/rpcqueue"
	"github.com/sirupsen/logrus"
)

// Factory creates a verifier for one chain configuration.
type Factory interface {
	CreateVerifier(
		config *types.ChainConfig,
		tokens []types.TokenConfig,
		queue *rpcqueue.Queue,
		logger *logrus.Logger,
	) (types.TransferVerifier, error)
}

type verifierRegistry struct {
	logger         *logrus.Logger
	queues         *rpcqueue.Registry
	verifiers      map[string]types.TransferVerifier
	verifiersMutex sync.RWMutex
	factory        Factory
	factoryMutex   sync.RWMutex
}

// NewRegistry creates a registry that builds one verifier and one throttled
// RPC queue per chain.
//
// Parameters:
// - factory: the factory used to construct chain verifiers.
// - queues: the per-chain RPC queue registry.
// - logger: the logger for logging purposes.
//
// Returns:
// - types.VerifierRegistry: the new registry instance.
func NewRegistry(factory Factory, queues *rpcqueue.Registry, logger *logrus.Logger) types.VerifierRegistry {
	return &verifierRegistry{
		logger:    logger,
		queues:    queues,
		verifiers: make(map[string]types.TransferVerifier),
		factory:   factory,
	}
}

func (r *verifierRegistry) Add(ctx context.Context, config *types.ChainConfig, tokens []types.TokenConfig) error {
	r.queues.Add(ctx, config.Key)
	queue := r.queues.Get(config.Key)

	// Lock factory for reading to prevent changes during verifier creation.
	r.factoryMutex.RLock()
	v, err := r.factory.CreateVerifier(config, tokens, queue, r.logger)
	r.factoryMutex.RUnlock()

	if err != nil {
		return err
	}

	// Lock verifiers map for writing.
	r.verifiersMutex.Lock()
	if previous, ok := r.verifiers[config.Key]; ok {
		previous.Close()
	}
	r.verifiers[config.Key] = v
	r.verifiersMutex.Unlock()

	return nil
}

func (r *verifierRegistry) Get(chainKey string) types.TransferVerifier {
	r.verifiersMutex.RLock()
	v := r.verifiers[chainKey]
	r.verifiersMutex.RUnlock()
	return v
}

func (r *verifierRegistry) Remove(chainKey string) {
	r.verifiersMutex.Lock()
	if v, ok := r.verifiers[chainKey]; ok {
		v.Close()
	}
	delete(r.verifiers, chainKey)
	r.verifiersMutex.Unlock()
}
