package rates

import (
	"context"
	"testing"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// linearQuote simulates a provider whose output is a fixed fraction of the
// input, i.e. a constant fee curve.
func linearQuote(ratio float64, calls *int) QuoteFunc {
	factor := decimal.NewFromFloat(ratio)
	return func(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error) {
		if calls != nil {
			*calls++
		}
		return &types.RateQuote{
			FromAmount: query.Amount,
			ToAmount:   query.Amount.Mul(factor),
			Rate:       factor,
			MinAmount:  decimal.NewFromInt(1),
			MaxAmount:  decimal.NewFromInt(100000),
		}, nil
	}
}

func reverseQuery(target float64) *types.RateQuery {
	return &types.RateQuery{
		FromChain: "eth",
		FromAsset: "ETH",
		ToChain:   "sol",
		ToAsset:   "SOL",
		Amount:    decimal.NewFromFloat(target),
		Direction: types.RateReverse,
	}
}

func TestReverseConvergesOnLinearCurve(t *testing.T) {
	calls := 0
	resolver := NewResolver(linearQuote(0.95, &calls), nil, quietLogger())

	quote, err := resolver.Resolve(context.Background(), reverseQuery(95))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !quote.Converged {
		t.Fatal("quote not converged on a well-behaved linear curve")
	}

	// A 5% fee curve targeting 95 should settle near a send amount of 100.
	low := decimal.NewFromInt(99)
	high := decimal.NewFromInt(101)
	if quote.FromAmount.LessThan(low) || quote.FromAmount.GreaterThan(high) {
		t.Errorf("FromAmount = %s, want within [99, 101]", quote.FromAmount)
	}

	// The resulting receive estimate must be within 1% of the target.
	diff := quote.ToAmount.Sub(decimal.NewFromInt(95)).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.95)) {
		t.Errorf("ToAmount = %s, want within 1%% of 95", quote.ToAmount)
	}

	if calls > maxIterations {
		t.Errorf("quote function called %d times, cap is %d", calls, maxIterations)
	}
}

func TestReverseNonConvergenceReturnsBestEffort(t *testing.T) {
	calls := 0
	// The provider ignores the input entirely, so no correction can converge.
	constantQuote := func(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error) {
		calls++
		return &types.RateQuote{
			FromAmount: query.Amount,
			ToAmount:   decimal.NewFromInt(50),
			Rate:       decimal.NewFromFloat(0.5),
			MinAmount:  decimal.NewFromInt(10),
			MaxAmount:  decimal.NewFromInt(500),
		}, nil
	}
	resolver := NewResolver(constantQuote, nil, quietLogger())

	quote, err := resolver.Resolve(context.Background(), reverseQuery(95))
	if err != nil {
		t.Fatalf("non-convergence must not be an error, got: %v", err)
	}

	if quote.Converged {
		t.Error("quote reports converged against a constant-output provider")
	}
	if calls != maxIterations {
		t.Errorf("quote function called %d times, want exactly %d", calls, maxIterations)
	}
	if quote.FromAmount.IsZero() {
		t.Error("best-effort FromAmount is zero")
	}
	if !quote.MinAmount.Equal(decimal.NewFromInt(10)) || !quote.MaxAmount.Equal(decimal.NewFromInt(500)) {
		t.Error("best-effort quote lost the provider's min/max bounds")
	}
}

func TestReverseQuoteErrorAborts(t *testing.T) {
	calls := 0
	failing := func(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("provider 502")
		}
		return &types.RateQuote{
			FromAmount: query.Amount,
			ToAmount:   decimal.NewFromInt(1),
		}, nil
	}
	resolver := NewResolver(failing, nil, quietLogger())

	_, err := resolver.Resolve(context.Background(), reverseQuery(95))
	if !errors.Is(err, commonerrors.ErrQuoteFailure) {
		t.Fatalf("err = %v, want ErrQuoteFailure", err)
	}
	if calls != 2 {
		t.Errorf("quote function called %d times after the failure, want abort at 2", calls)
	}
}

func TestForwardQueryPassesThrough(t *testing.T) {
	calls := 0
	resolver := NewResolver(linearQuote(0.9, &calls), nil, quietLogger())

	quote, err := resolver.Resolve(context.Background(), &types.RateQuery{
		FromChain: "eth",
		FromAsset: "ETH",
		ToChain:   "sol",
		ToAsset:   "SOL",
		Amount:    decimal.NewFromInt(10),
		Direction: types.RateForward,
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if calls != 1 {
		t.Errorf("quote function called %d times for a forward query, want 1", calls)
	}
	if !quote.ToAmount.Equal(decimal.NewFromInt(9)) {
		t.Errorf("ToAmount = %s, want 9", quote.ToAmount)
	}
	if !quote.Converged {
		t.Error("forward quote not marked converged")
	}
}

func TestSamePairRejected(t *testing.T) {
	resolver := NewResolver(linearQuote(1, nil), nil, quietLogger())

	_, err := resolver.Resolve(context.Background(), &types.RateQuery{
		FromChain: "eth",
		FromAsset: "USDT",
		ToChain:   "eth",
		ToAsset:   "USDT",
		Amount:    decimal.NewFromInt(10),
		Direction: types.RateReverse,
	})
	if !errors.Is(err, commonerrors.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
