package evm

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/FluxPay/paycore-lib/common/types"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// verifyNative scans recent blocks newest to oldest, in strides of
// blockStride, looking for a successful native transfer to the recipient of
// at least the required amount minus tolerance.
func (e *evm) verifyNative(ctx context.Context, backend Backend, query *types.VerificationQuery) (*types.VerificationResult, error) {
	current, backend, result := e.currentBlock(ctx, backend)
	if result != nil {
		return result, nil
	}

	window := e.scanWindow(query.Since(), nativeLookbackCap)
	stop := uint64(0)
	if current > window {
		stop = current - window
	}

	threshold := query.Amount.Sub(query.Tolerance())
	since := query.Since()
	rotations := 0

	// Walk backward one stride at a time. Blocks within a stride are fetched
	// newest first; the context is re-checked at every stride boundary.
	for high := current; high > stop; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		low := stop
		if high > stop+blockStride {
			low = high - blockStride
		}

		for num := high; num > low; {
			blockVal, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
				return backend.BlockByNumber(ctx, new(big.Int).SetUint64(num))
			})
			if err != nil {
				if isRateLimitError(err) {
					rotations++
					if rotations >= e.pool.Size() {
						return types.Unverified(e.config.Key, types.ReasonRateLimited,
							"every RPC endpoint rate-limited the scan"), nil
					}

					rotated, rerr := e.rotateBackend(ctx)
					if rerr != nil {
						return types.Unverified(e.config.Key, types.ReasonRPCUnavailable,
							"all RPC endpoints failed"), nil
					}
					backend = rotated
					continue // retry the same block on the new endpoint
				}

				// A single failing block is skipped; the scan stays best-effort.
				e.logger.WithFields(logrus.Fields{
					"chain": e.config.Name,
					"block": num,
				}).WithError(err).Warn("Failed to fetch block, skipping")
				num--
				continue
			}

			block := blockVal.(*ethtypes.Block)

			// Blocks are monotonically ordered by time, so once a block
			// predates the query's lower bound nothing older can match.
			if !since.IsZero() && block.Time() < uint64(since.Unix()) {
				return types.Unverified(e.config.Key, types.ReasonNoMatch,
					"no qualifying native transfer found in scanned window"), nil
			}

			if match := e.matchNativeTransfer(ctx, backend, block, query, threshold); match != nil {
				return match, nil
			}

			num--
		}

		high = low
	}

	return types.Unverified(e.config.Key, types.ReasonNoMatch,
		"no qualifying native transfer found in scanned window"), nil
}

// matchNativeTransfer inspects every transaction of one block and returns a
// verified result for the first successful transfer to the recipient meeting
// the threshold, or nil.
func (e *evm) matchNativeTransfer(
	ctx context.Context,
	backend Backend,
	block *ethtypes.Block,
	query *types.VerificationQuery,
	threshold decimal.Decimal,
) *types.VerificationResult {
	for _, tx := range block.Transactions() {
		if tx.To() == nil || !strings.EqualFold(tx.To().Hex(), query.Recipient) {
			continue
		}

		amount := weiToDecimal(tx.Value(), e.config.NativeDecimals)
		if amount.LessThan(threshold) {
			continue
		}

		// A matching value is only accepted once the receipt confirms the
		// transaction did not revert.
		receiptVal, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
			return backend.TransactionReceipt(ctx, tx.Hash())
		})
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"chain":  e.config.Name,
				"txHash": tx.Hash().Hex(),
			}).WithError(err).Warn("Failed to fetch receipt, skipping transaction")
			continue
		}

		receipt := receiptVal.(*ethtypes.Receipt)
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			continue
		}

		var sender string
		if from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
			sender = from.Hex()
		}

		return &types.VerificationResult{
			Verified:  true,
			TxHash:    tx.Hash().Hex(),
			Amount:    amount,
			From:      sender,
			To:        tx.To().Hex(),
			ChainKey:  e.config.Key,
			BlockRef:  block.NumberU64(),
			Timestamp: time.Unix(int64(block.Time()), 0),
		}
	}

	return nil
}

// weiToDecimal converts a raw chain value to human units.
func weiToDecimal(value *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(value, -int32(decimals))
}
