package verifier

import (
	"time"

	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ServiceBuilder is a builder pattern implementation for the verification
// service. It allows overriding the metrics recorder, the query validator
// and the per-attempt timeout.
type ServiceBuilder struct {
	registry types.VerifierRegistry // Chain verifier registry.
	validate *validator.Validate    // Query struct validator.
	recorder metrics.Recorder       // Metrics recorder implementation.
	timeout  time.Duration          // Wall-clock budget per verification.
	logger   *logrus.Logger         // Logger for service events.
}

// NewServiceBuilder creates a new service builder instance.
//
// Parameters:
// - registry: the chain verifier registry.
// - logger: the logger for logging purposes.
//
// Returns:
// - *ServiceBuilder: a new ServiceBuilder instance.
func NewServiceBuilder(registry types.VerifierRegistry, logger *logrus.Logger) *ServiceBuilder {
	return &ServiceBuilder{
		registry: registry,
		logger:   logger,
	}
}

// WithRecorder sets the metrics recorder implementation.
//
// Parameters:
// - recorder: the metrics recorder implementation.
//
// Returns:
// - *ServiceBuilder: the updated ServiceBuilder instance.
func (b *ServiceBuilder) WithRecorder(recorder metrics.Recorder) *ServiceBuilder {
	b.recorder = recorder
	return b
}

// WithValidator sets the query validator instance.
//
// Parameters:
// - validate: the validator instance.
//
// Returns:
// - *ServiceBuilder: the updated ServiceBuilder instance.
func (b *ServiceBuilder) WithValidator(validate *validator.Validate) *ServiceBuilder {
	b.validate = validate
	return b
}

// WithTimeout sets the wall-clock budget for one verification attempt.
//
// Parameters:
// - timeout: the per-attempt timeout.
//
// Returns:
// - *ServiceBuilder: the updated ServiceBuilder instance.
func (b *ServiceBuilder) WithTimeout(timeout time.Duration) *ServiceBuilder {
	b.timeout = timeout
	return b
}

// Build creates a new service instance with the configured implementations.
//
// Returns:
// - *Service: a new Service instance.
func (b *ServiceBuilder) Build() *Service {
	validate := b.validate
	if validate == nil {
		validate = validator.New()
	}
	recorder := b.recorder
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	timeout := b.timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}

	return &Service{
		registry: b.registry,
		validate: validate,
		recorder: recorder,
		timeout:  timeout,
		logger:   b.logger,
	}
}
