package solana

import (
	"context"

	"github.com/FluxPay/paycore-lib/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// solTolerance is the fixed absolute tolerance for native SOL amounts.
var solTolerance = decimal.NewFromFloat(0.0001)

// verifyNative fetches the recipient's most recent signatures, newest first,
// and accepts the first error-free transaction whose balance delta for the
// recipient meets the required amount minus tolerance.
func (s *solana) verifyNative(ctx context.Context, backend Backend, query *types.VerificationQuery) (*types.VerificationResult, error) {
	recipient := sol.MustPublicKeyFromBase58(query.Recipient)

	sigsVal, err := s.call(ctx, func(ctx context.Context) (interface{}, error) {
		return backend.Signatures(ctx, recipient, signatureLimit)
	})
	if err != nil {
		return types.Unverified(s.config.Key, types.ReasonRPCUnavailable,
			"failed to fetch signature history"), nil
	}

	signatures := sigsVal.([]*rpc.TransactionSignature)
	threshold := query.Amount.Sub(solTolerance)
	since := query.Since()

	for _, sig := range signatures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Signatures are newest first: once one predates the lower bound,
		// everything after it is older still.
		if !since.IsZero() && sig.BlockTime != nil && sig.BlockTime.Time().Before(since) {
			break
		}

		if sig.Err != nil {
			continue
		}

		detailVal, err := s.call(ctx, func(ctx context.Context) (interface{}, error) {
			return backend.Transaction(ctx, sig.Signature)
		})
		if err != nil {
			// One unfetchable transaction does not end the scan.
			s.logger.WithFields(logrus.Fields{
				"chain":     s.config.Name,
				"signature": sig.Signature.String(),
			}).WithError(err).Warn("Failed to fetch transaction, skipping")
			continue
		}

		detail := detailVal.(*TransactionDetail)
		if detail.Err != nil {
			continue
		}

		delta, ok := recipientDelta(detail, recipient)
		if !ok || delta.LessThan(threshold) {
			continue
		}

		result := &types.VerificationResult{
			Verified: true,
			TxHash:   sig.Signature.String(),
			Amount:   delta,
			To:       query.Recipient,
			ChainKey: s.config.Key,
			BlockRef: detail.Slot,
		}
		if len(detail.AccountKeys) > 0 {
			result.From = detail.AccountKeys[0].String()
		}
		if detail.BlockTime != nil {
			result.Timestamp = *detail.BlockTime
		}

		return result, nil
	}

	return types.Unverified(s.config.Key, types.ReasonNoMatch,
		"no qualifying transfer found in recent signatures"), nil
}

// recipientDelta computes the recipient's SOL balance change in a
// transaction. The second return is false when the recipient's account index
// cannot be resolved.
func recipientDelta(detail *TransactionDetail, recipient sol.PublicKey) (decimal.Decimal, bool) {
	for i, key := range detail.AccountKeys {
		if !key.Equals(recipient) {
			continue
		}
		if i >= len(detail.PreBalances) || i >= len(detail.PostBalances) {
			return decimal.Zero, false
		}

		pre := decimal.NewFromInt(int64(detail.PreBalances[i]))
		post := decimal.NewFromInt(int64(detail.PostBalances[i]))
		return post.Sub(pre).Div(decimal.NewFromInt(lamportsPerSol)), true
	}

	return decimal.Zero, false
}
