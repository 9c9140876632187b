package evm

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// verifyToken queries ERC-20 Transfer logs with the recipient as the indexed
// `to` parameter and accepts the newest successful transfer meeting the
// threshold.
func (e *evm) verifyToken(ctx context.Context, backend Backend, query *types.VerificationQuery) (*types.VerificationResult, error) {
	token, ok := e.tokens[strings.ToUpper(query.Asset)]
	if !ok {
		return types.Unverified(e.config.Key, types.ReasonUnsupported,
			"token not configured for this chain"), nil
	}

	current, backend, shortCircuit := e.currentBlock(ctx, backend)
	if shortCircuit != nil {
		return shortCircuit, nil
	}

	window := e.scanWindow(query.Since(), tokenLookbackCap)
	start := uint64(0)
	if current > window {
		start = current - window
	}

	logs, backend, shortCircuit := e.fetchTransferLogs(ctx, backend, token, query.Recipient, start)
	if shortCircuit != nil {
		return shortCircuit, nil
	}

	threshold := query.Amount.Sub(query.Tolerance())
	since := query.Since()
	recipient := strings.ToLower(query.Recipient)

	// Logs arrive oldest first; the scan is newest-to-oldest.
	for i := len(logs) - 1; i >= 0; i-- {
		log := logs[i]
		if log.Removed || len(log.Topics) < 3 {
			continue
		}

		to := common.BytesToAddress(log.Topics[2].Bytes())
		if strings.ToLower(to.Hex()) != recipient {
			continue
		}

		amount := weiToDecimal(new(big.Int).SetBytes(log.Data), token.Decimals)
		if amount.LessThan(threshold) {
			continue
		}

		var blockTime time.Time
		if !since.IsZero() {
			headerVal, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
				return backend.HeaderByNumber(ctx, new(big.Int).SetUint64(log.BlockNumber))
			})
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"chain": e.config.Name,
					"block": log.BlockNumber,
				}).WithError(err).Warn("Failed to fetch header, skipping event")
				continue
			}

			header := headerVal.(*ethtypes.Header)
			blockTime = time.Unix(int64(header.Time), 0)

			// Descending scan: everything below this event is older still.
			if blockTime.Before(since) {
				break
			}
		}

		receiptVal, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
			return backend.TransactionReceipt(ctx, log.TxHash)
		})
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"chain":  e.config.Name,
				"txHash": log.TxHash.Hex(),
			}).WithError(err).Warn("Failed to fetch receipt, skipping event")
			continue
		}
		if receiptVal.(*ethtypes.Receipt).Status != ethtypes.ReceiptStatusSuccessful {
			continue
		}

		return &types.VerificationResult{
			Verified:    true,
			TxHash:      log.TxHash.Hex(),
			Amount:      amount,
			From:        common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
			To:          to.Hex(),
			ChainKey:    e.config.Key,
			BlockRef:    log.BlockNumber,
			Timestamp:   blockTime,
			TokenSymbol: token.Symbol,
		}, nil
	}

	return types.Unverified(e.config.Key, types.ReasonNoMatch,
		"no qualifying token transfer found in scanned window"), nil
}

// fetchTransferLogs runs the Transfer log query over [start, latest],
// rotating endpoints on rate limits.
func (e *evm) fetchTransferLogs(
	ctx context.Context,
	backend Backend,
	token types.TokenConfig,
	recipient string,
	start uint64,
) ([]ethtypes.Log, Backend, *types.VerificationResult) {
	filter := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(start),
		Addresses: []common.Address{common.HexToAddress(token.ContractAddress)},
		Topics: [][]common.Hash{
			{transferTopic},
			nil,
			{common.BytesToHash(common.HexToAddress(recipient).Bytes())},
		},
	}

	rotations := 0
	for {
		logsVal, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
			return backend.FilterLogs(ctx, filter)
		})
		if err == nil {
			return logsVal.([]ethtypes.Log), backend, nil
		}

		if isRateLimitError(err) {
			rotations++
			if rotations >= e.pool.Size() {
				return nil, backend, types.Unverified(e.config.Key, types.ReasonRateLimited,
					"every RPC endpoint rate-limited the scan")
			}

			rotated, rerr := e.rotateBackend(ctx)
			if rerr != nil {
				return nil, backend, types.Unverified(e.config.Key, types.ReasonRPCUnavailable,
					"all RPC endpoints failed")
			}
			backend = rotated
			continue
		}

		return nil, backend, types.Unverified(e.config.Key, types.ReasonRPCUnavailable,
			"transfer log query failed")
	}
}
