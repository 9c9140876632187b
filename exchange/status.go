package exchange

import (
	"strings"

	"github.com/FluxPay/paycore-lib/common/types"
)

// statusTable maps the provider's status vocabulary to internal order states.
var statusTable = map[string]types.OrderStatus{
	"waiting":    types.OrderAwaitingDeposit,
	"confirming": types.OrderAwaitingDeposit,
	"exchanging": types.OrderProcessing,
	"sending":    types.OrderProcessing,
	"finished":   types.OrderCompleted,
	"failed":     types.OrderFailed,
	"refunded":   types.OrderFailed,
	"expired":    types.OrderFailed,
}

// MapStatus translates a provider status string into an internal order
// status. Unrecognized statuses map to awaiting_deposit: an unknown provider
// state must never be treated as terminal.
func MapStatus(providerStatus string) types.OrderStatus {
	if status, ok := statusTable[strings.ToLower(strings.TrimSpace(providerStatus))]; ok {
		return status
	}
	return types.OrderAwaitingDeposit
}
