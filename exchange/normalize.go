package exchange

import (
	"encoding/json"
	"time"

	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Provider response shapes drift across API versions: the same field shows up
// under different names and amounts arrive as strings or numbers. These alias
// lists are the single normalization boundary; nothing downstream sees raw
// provider JSON.
var (
	depositAddressAliases  = []string{"payinAddress", "depositAddress", "address"}
	exchangeIDAliases      = []string{"id", "exchangeId", "transactionId"}
	estimatedAmountAliases = []string{"estimatedAmount", "toAmount", "amountTo"}
	fromAmountAliases      = []string{"fromAmount", "amountFrom", "amount"}
	rateAliases            = []string{"rate", "exchangeRate"}
	minAmountAliases       = []string{"minAmount", "minimalAmount", "min"}
	maxAmountAliases       = []string{"maxAmount", "maximalAmount", "max"}
	validUntilAliases      = []string{"validUntil", "expiresAt"}
	statusAliases          = []string{"status", "state"}
	depositTxAliases       = []string{"payinHash", "depositTxHash"}
	payoutTxAliases        = []string{"payoutHash", "payoutTxHash"}
)

// NormalizeQuote maps a raw provider quote response to the internal contract.
func NormalizeQuote(raw []byte) (*types.RateQuote, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}

	estimated, ok := decimalField(fields, estimatedAmountAliases...)
	if !ok {
		return nil, errors.New("quote response missing estimated amount")
	}

	quote := &types.RateQuote{
		ToAmount: estimated,
	}
	if v, ok := decimalField(fields, fromAmountAliases...); ok {
		quote.FromAmount = v
	}
	if v, ok := decimalField(fields, rateAliases...); ok {
		quote.Rate = v
	}
	if v, ok := decimalField(fields, minAmountAliases...); ok {
		quote.MinAmount = v
	}
	if v, ok := decimalField(fields, maxAmountAliases...); ok {
		quote.MaxAmount = v
	}

	return quote, nil
}

// NormalizeDepositAddress maps a raw swap creation response to the internal
// contract.
func NormalizeDepositAddress(raw []byte) (*DepositAddress, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}

	address := stringField(fields, depositAddressAliases...)
	if address == "" {
		return nil, errors.New("swap response missing deposit address")
	}
	exchangeID := stringField(fields, exchangeIDAliases...)
	if exchangeID == "" {
		return nil, errors.New("swap response missing exchange id")
	}

	result := &DepositAddress{
		DepositAddress: address,
		ExchangeID:     exchangeID,
	}
	if v, ok := decimalField(fields, estimatedAmountAliases...); ok {
		result.EstimatedAmount = v
	}
	if v, ok := decimalField(fields, rateAliases...); ok {
		result.Rate = v
	}
	if t, ok := timeField(fields, validUntilAliases...); ok {
		result.ValidUntil = t
	}

	return result, nil
}

// NormalizeStatus maps a raw status response to the internal contract. The
// status string stays in the provider's vocabulary; MapStatus translates it.
func NormalizeStatus(raw []byte) (*Status, error) {
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}

	status := stringField(fields, statusAliases...)
	if status == "" {
		return nil, errors.New("status response missing status field")
	}

	return &Status{
		Status:        status,
		DepositTxHash: stringField(fields, depositTxAliases...),
		PayoutTxHash:  stringField(fields, payoutTxAliases...),
	}, nil
}

func decodeFields(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "failed to decode provider response")
	}
	return fields, nil
}

// stringField returns the first alias present as a non-empty string.
func stringField(fields map[string]json.RawMessage, aliases ...string) string {
	for _, alias := range aliases {
		raw, ok := fields[alias]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// decimalField returns the first alias present as a parseable amount,
// accepting both JSON numbers and numeric strings.
func decimalField(fields map[string]json.RawMessage, aliases ...string) (decimal.Decimal, bool) {
	for _, alias := range aliases {
		raw, ok := fields[alias]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, err := decimal.NewFromString(s); err == nil {
				return v, true
			}
			continue
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if v, err := decimal.NewFromString(n.String()); err == nil {
				return v, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// timeField returns the first alias present as either an RFC 3339 string or
// a unix-seconds number.
func timeField(fields map[string]json.RawMessage, aliases ...string) (time.Time, bool) {
	for _, alias := range aliases {
		raw, ok := fields[alias]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t, true
			}
			continue
		}

		var unix int64
		if err := json.Unmarshal(raw, &unix); err == nil && unix > 0 {
			return time.Unix(unix, 0), true
		}
	}
	return time.Time{}, false
}
