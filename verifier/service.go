package verifier

import (
	"context"
	"time"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultVerifyTimeout bounds one verification attempt end to end, including
// queue wait time on a busy chain.
const defaultVerifyTimeout = 90 * time.Second

// Service is the verification entry point. It validates the query, resolves
// the chain's verifier and runs the scan under a wall-clock budget.
type Service struct {
	registry types.VerifierRegistry
	validate *validator.Validate
	recorder metrics.Recorder
	timeout  time.Duration
	logger   *logrus.Logger
}

// VerifyPayment checks whether a qualifying inbound transfer has landed on
// the requested chain.
//
// Parameters:
// - ctx: the context for this request.
// - query: the verification query describing the expected transfer.
//
// Returns:
// - *types.VerificationResult: the verification outcome, never nil on nil error.
// - error: an error if the query is malformed or the chain is unknown.
func (s *Service) VerifyPayment(ctx context.Context, query *types.VerificationQuery) (*types.VerificationResult, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, errors.Wrap(err, "invalid verification query")
	}

	v := s.registry.Get(query.ChainKey)
	if v == nil {
		return nil, errors.Wrapf(commonerrors.ErrVerifierNotFound, "chain %s", query.ChainKey)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := v.VerifyTransfer(ctx, query)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"chain":     query.ChainKey,
			"recipient": query.Recipient,
		}).WithError(err).Error("Verification failed")
		return nil, err
	}

	outcome := string(result.Reason)
	if result.Verified {
		outcome = "verified"
	}
	s.recorder.IncVerification(query.ChainKey, outcome)

	s.logger.WithFields(logrus.Fields{
		"chain":    query.ChainKey,
		"verified": result.Verified,
		"reason":   result.Reason,
		"txHash":   result.TxHash,
	}).Info("Verification completed")

	return result, nil
}
