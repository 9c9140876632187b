package chains

import (
	"sync"

	"github.com/FluxPay/paycore-lib/chains/evm"
	"github.com/FluxPay/paycore-lib/chains/solana"
	commontypes "github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/rpcqueue"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// VerifierConstructor represents a function that constructs a transfer
// verifier for one chain.
//
// Parameters:
// - config: the configuration for the chain.
// - tokens: the token configurations for the chain, keyed by symbol.
// - queue: the chain's throttled RPC queue.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.TransferVerifier: the constructed verifier instance.
// - error: an error if the verifier construction fails.
type VerifierConstructor func(
	config *commontypes.ChainConfig,
	tokens []commontypes.TokenConfig,
	queue *rpcqueue.Queue,
	logger *logrus.Logger,
) (commontypes.TransferVerifier, error)

// VerifierFactory defines the interface for verifier creation.
type VerifierFactory interface {
	// RegisterConstructor registers a new verifier constructor for a given
	// chain type.
	//
	// Parameters:
	// - chainType: the type of the chain to register.
	// - constructor: the constructor function for the chain type.
	RegisterConstructor(chainType commontypes.ChainType, constructor VerifierConstructor)

	// CreateVerifier creates a new verifier instance based on the
	// configuration.
	//
	// Parameters:
	// - config: the configuration for the chain.
	// - tokens: the token configurations for the chain.
	// - queue: the chain's throttled RPC queue.
	// - logger: the logger for logging purposes.
	//
	// Returns:
	// - commontypes.TransferVerifier: the created verifier instance.
	// - error: an error if the verifier creation fails.
	CreateVerifier(
		config *commontypes.ChainConfig,
		tokens []commontypes.TokenConfig,
		queue *rpcqueue.Queue,
		logger *logrus.Logger,
	) (commontypes.TransferVerifier, error)
}

type verifierFactory struct {
	// constructors stores the mapping of chain types to their constructors.
	constructors map[commontypes.ChainType]VerifierConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewVerifierFactory creates a new instance of the verifier factory.
//
// Returns:
// - VerifierFactory: the new verifier factory instance.
func NewVerifierFactory() VerifierFactory {
	factory := &verifierFactory{
		constructors: make(map[commontypes.ChainType]VerifierConstructor),
	}

	// Initialize with default constructors.
	factory.registerConstructors()

	return factory
}

// RegisterConstructor registers a new verifier constructor.
//
// Parameters:
// - chainType: the type of the chain to register.
// - constructor: the constructor function for the chain type.
func (f *verifierFactory) RegisterConstructor(chainType commontypes.ChainType, constructor VerifierConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateVerifier creates a new verifier instance based on the configuration.
//
// Parameters:
// - config: the configuration for the chain.
// - tokens: the token configurations for the chain.
// - queue: the chain's throttled RPC queue.
// - logger: the logger for logging purposes.
//
// Returns:
// - commontypes.TransferVerifier: the created verifier instance.
// - error: an error if the verifier creation fails.
func (f *verifierFactory) CreateVerifier(
	config *commontypes.ChainConfig,
	tokens []commontypes.TokenConfig,
	queue *rpcqueue.Queue,
	logger *logrus.Logger,
) (commontypes.TransferVerifier, error) {
	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, errors.New("invalid chain type")
	}

	return constructor(config, tokens, queue, logger)
}

// registerConstructors registers the blockchain constructors for the verifier
// factory instance.
func (f *verifierFactory) registerConstructors() {
	// Register EVM verifier constructor with the factory.
	f.RegisterConstructor(commontypes.EVM, func(
		config *commontypes.ChainConfig,
		tokens []commontypes.TokenConfig,
		queue *rpcqueue.Queue,
		logger *logrus.Logger,
	) (commontypes.TransferVerifier, error) {
		return evm.NewVerifier(config, tokens, queue, logger), nil
	})

	// Register Solana verifier constructor with the factory.
	f.RegisterConstructor(commontypes.SOLANA, func(
		config *commontypes.ChainConfig,
		tokens []commontypes.TokenConfig,
		queue *rpcqueue.Queue,
		logger *logrus.Logger,
	) (commontypes.TransferVerifier, error) {
		return solana.NewVerifier(config, queue, logger), nil
	})
}
