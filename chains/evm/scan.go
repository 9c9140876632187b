package evm

import (
	"context"

	"github.com/FluxPay/paycore-lib/common/types"
)

// currentBlock fetches the chain head height, rotating endpoints on rate
// limits. A non-nil VerificationResult short-circuits the verification.
func (e *evm) currentBlock(ctx context.Context, backend Backend) (uint64, Backend, *types.VerificationResult) {
	rotations := 0

	for {
		heightVal, err := e.call(ctx, func(ctx context.Context) (interface{}, error) {
			return backend.BlockNumber(ctx)
		})
		if err == nil {
			return heightVal.(uint64), backend, nil
		}

		if isRateLimitError(err) {
			rotations++
			if rotations >= e.pool.Size() {
				return 0, backend, types.Unverified(e.config.Key, types.ReasonRateLimited,
					"every RPC endpoint rate-limited the scan")
			}

			rotated, rerr := e.rotateBackend(ctx)
			if rerr != nil {
				return 0, backend, types.Unverified(e.config.Key, types.ReasonRPCUnavailable,
					"all RPC endpoints failed")
			}
			backend = rotated
			continue
		}

		return 0, backend, types.Unverified(e.config.Key, types.ReasonRPCUnavailable,
			"failed to fetch chain head")
	}
}
