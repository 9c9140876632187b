package rates

import (
	"context"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/metrics"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// maxIterations caps the reverse solver. The cap doubles as the cancellation
// mechanism against non-converging pairs.
const maxIterations = 5

var (
	// seedMarkup is the initial overshoot applied to the target amount. Most
	// swap pairs lose value to fees, so the send side starts 5% above.
	seedMarkup = decimal.NewFromFloat(1.05)
	// relTolerance is the relative convergence tolerance on the receive side.
	relTolerance = decimal.NewFromFloat(0.01)
	// dampUndershoot and dampOvershoot nudge the correction factor past the
	// raw ratio to keep successive iterations from oscillating.
	dampUndershoot = decimal.NewFromFloat(1.02)
	dampOvershoot  = decimal.NewFromFloat(0.98)
)

// QuoteFunc requests a forward quote from the external provider: given the
// query's Amount as the send amount, it returns the estimated receive amount.
type QuoteFunc func(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error)

// Resolver solves reverse rate queries against a forward-only quote oracle.
// It is a pure computation over the quote function; callers own any caching
// or debouncing of repeated invocations.
type Resolver struct {
	quote    QuoteFunc
	recorder metrics.Recorder
	logger   *logrus.Logger
}

// NewResolver creates a rate resolver.
//
// Parameters:
// - quote: the provider's forward quote function.
// - recorder: the metrics recorder; nil uses a no-op recorder.
// - logger: the logger for logging purposes.
//
// Returns:
// - *Resolver: a new Resolver instance.
func NewResolver(quote QuoteFunc, recorder metrics.Recorder, logger *logrus.Logger) *Resolver {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}

	return &Resolver{
		quote:    quote,
		recorder: recorder,
		logger:   logger,
	}
}

// Resolve answers a rate query. Forward queries pass straight through to the
// provider; reverse queries run the iterative solver.
//
// Parameters:
// - ctx: the context for this request.
// - query: the rate query to resolve.
//
// Returns:
// - *types.RateQuote: the resolved quote.
// - error: an error if the pair is degenerate or the provider quote fails.
func (r *Resolver) Resolve(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error) {
	if query.SamePair() {
		return nil, errors.Wrap(commonerrors.ErrInvalidConfig,
			"identical asset and chain on both sides, use direct payment")
	}

	if query.Direction == types.RateReverse {
		return r.resolveReverse(ctx, query)
	}

	quote, err := r.forwardQuote(ctx, query, query.Amount)
	if err != nil {
		return nil, err
	}
	quote.Converged = true

	return quote, nil
}

// resolveReverse finds the send amount that yields approximately the target
// receive amount, refining a forward quote up to maxIterations times.
func (r *Resolver) resolveReverse(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error) {
	target := query.Amount
	fromAmount := target.Mul(seedMarkup)

	var lastQuote *types.RateQuote

	for iteration := 1; iteration <= maxIterations; iteration++ {
		quote, err := r.forwardQuote(ctx, query, fromAmount)
		if err != nil {
			return nil, err
		}
		lastQuote = quote

		estimated := quote.ToAmount
		if withinTolerance(estimated, target) {
			r.recorder.ObserveResolverIterations(iteration)

			quote.FromAmount = fromAmount
			quote.ToAmount = estimated
			quote.Converged = true
			return quote, nil
		}

		if estimated.IsZero() {
			// A zero estimate gives no usable correction ratio; bump the
			// send amount and try again.
			fromAmount = fromAmount.Mul(dampUndershoot)
			continue
		}

		correction := target.Div(estimated)
		if estimated.LessThan(target) {
			correction = correction.Mul(dampUndershoot)
		} else {
			correction = correction.Mul(dampOvershoot)
		}
		fromAmount = fromAmount.Mul(correction)
	}

	r.recorder.ObserveResolverIterations(maxIterations)
	r.logger.WithFields(logrus.Fields{
		"fromAsset": query.FromAsset,
		"toAsset":   query.ToAsset,
		"target":    target.String(),
		"estimate":  fromAmount.String(),
	}).Warn("Reverse rate resolution did not converge, returning best effort")

	// Non-convergence is not a failure: the last estimate ships with the last
	// quote's metadata so the caller can still present bounds and a rate.
	result := &types.RateQuote{
		FromAmount: fromAmount,
		Converged:  false,
	}
	if lastQuote != nil {
		result.ToAmount = lastQuote.ToAmount
		result.Rate = lastQuote.Rate
		result.MinAmount = lastQuote.MinAmount
		result.MaxAmount = lastQuote.MaxAmount
	}

	return result, nil
}

// forwardQuote runs one provider quote with the given send amount. Provider
// errors abort resolution immediately.
func (r *Resolver) forwardQuote(ctx context.Context, query *types.RateQuery, fromAmount decimal.Decimal) (*types.RateQuote, error) {
	forward := &types.RateQuery{
		FromChain: query.FromChain,
		FromAsset: query.FromAsset,
		ToChain:   query.ToChain,
		ToAsset:   query.ToAsset,
		Amount:    fromAmount,
		Direction: types.RateForward,
	}

	quote, err := r.quote(ctx, forward)
	if err != nil {
		return nil, errors.Wrap(commonerrors.ErrQuoteFailure, err.Error())
	}

	return quote, nil
}

// withinTolerance reports whether estimated is within the relative tolerance
// of target.
func withinTolerance(estimated, target decimal.Decimal) bool {
	if target.IsZero() {
		return estimated.IsZero()
	}

	diff := estimated.Sub(target).Abs()
	return diff.LessThanOrEqual(target.Mul(relTolerance))
}
