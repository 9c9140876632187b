package evm

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/FluxPay/paycore-lib/common/retry"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/failover"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	recipientAddr = common.HexToAddress("0xAbCdEF0123456789abcdef0123456789ABcDef01")
	senderAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	usdtContract  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fixtureBackend struct {
	head     uint64
	headErr  error
	blocks   map[uint64]*ethtypes.Block
	blockErr map[uint64]error
	headers  map[uint64]*ethtypes.Header
	receipts map[common.Hash]*ethtypes.Receipt
	logs     []ethtypes.Log
	logsErr  error
}

func (f *fixtureBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fixtureBackend) BlockByNumber(ctx context.Context, number *big.Int) (*ethtypes.Block, error) {
	n := number.Uint64()
	if err := f.blockErr[n]; err != nil {
		return nil, err
	}
	block, ok := f.blocks[n]
	if !ok {
		return nil, errors.New("block not found")
	}
	return block, nil
}

func (f *fixtureBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	header, ok := f.headers[number.Uint64()]
	if !ok {
		return nil, errors.New("header not found")
	}
	return header, nil
}

func (f *fixtureBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fixtureBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return f.logs, f.logsErr
}

func newBlock(number uint64, blockTime time.Time, txs ...*ethtypes.Transaction) *ethtypes.Block {
	header := &ethtypes.Header{
		Number: new(big.Int).SetUint64(number),
		Time:   uint64(blockTime.Unix()),
	}
	return ethtypes.NewBlockWithHeader(header).WithBody(ethtypes.Body{Transactions: txs})
}

func nativeTx(to common.Address, valueWei *big.Int) *ethtypes.Transaction {
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    valueWei,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func ether(f float64) *big.Int {
	return decimal.NewFromFloat(f).Mul(decimal.New(1, 18)).BigInt()
}

func newTestVerifier(backend Backend) *evm {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	config := &types.ChainConfig{
		Key:            "bnb",
		Name:           "BNB Chain",
		ChainType:      types.EVM,
		RpcUrls:        []string{"primary", "secondary", "tertiary"},
		NativeSymbol:   "BNB",
		NativeDecimals: 18,
		AvgBlockTime:   3,
	}
	tokens := []types.TokenConfig{{
		ChainKey:        "bnb",
		Symbol:          "USDT",
		ContractAddress: usdtContract.Hex(),
		Decimals:        6,
	}}

	verifier := NewVerifier(config, tokens, nil, logger).(*evm)
	verifier.backend = backend
	return verifier
}

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"0xAbCdEF0123456789abcdef0123456789ABcDef01",
		"0x0000000000000000000000000000000000000000",
	}
	invalid := []string{
		"",
		"0x123",
		"AbCdEF0123456789abcdef0123456789ABcDef01",
		"0xZZZdEF0123456789abcdef0123456789ABcDef01",
		"0xAbCdEF0123456789abcdef0123456789ABcDef0123",
	}

	for _, a := range valid {
		if !ValidateAddress(a) {
			t.Errorf("ValidateAddress(%q) = false, want true", a)
		}
	}
	for _, a := range invalid {
		if ValidateAddress(a) {
			t.Errorf("ValidateAddress(%q) = true, want false", a)
		}
	}
}

func TestVerifyNativeTransferFound(t *testing.T) {
	now := time.Now()
	tx := nativeTx(recipientAddr, ether(1.5))

	backend := &fixtureBackend{
		head: 100,
		blocks: map[uint64]*ethtypes.Block{
			100: newBlock(100, now, tx),
		},
		receipts: map[common.Hash]*ethtypes.Receipt{
			tx.Hash(): {Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)},
		},
	}
	// Older blocks in the window are empty.
	for n := uint64(1); n < 100; n++ {
		backend.blocks[n] = newBlock(n, now.Add(-time.Duration(100-n)*3*time.Second))
	}

	verifier := newTestVerifier(backend)
	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: recipientAddr.Hex(),
		Amount:    decimal.NewFromFloat(1.5),
		Asset:     types.NativeAsset,
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if !result.Verified {
		t.Fatalf("result not verified: reason=%s message=%s", result.Reason, result.Message)
	}
	if result.TxHash != tx.Hash().Hex() {
		t.Errorf("TxHash = %s, want %s", result.TxHash, tx.Hash().Hex())
	}
	if !result.Amount.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("Amount = %s, want 1.5", result.Amount)
	}
	if result.BlockRef != 100 {
		t.Errorf("BlockRef = %d, want 100", result.BlockRef)
	}
}

func TestVerifyNativeBelowToleranceNoMatch(t *testing.T) {
	now := time.Now()
	tx := nativeTx(recipientAddr, ether(0.9))

	backend := &fixtureBackend{
		head: 10,
		blocks: map[uint64]*ethtypes.Block{
			10: newBlock(10, now, tx),
		},
		receipts: map[common.Hash]*ethtypes.Receipt{
			tx.Hash(): {Status: ethtypes.ReceiptStatusSuccessful},
		},
	}
	for n := uint64(1); n < 10; n++ {
		backend.blocks[n] = newBlock(n, now.Add(-time.Minute))
	}

	verifier := newTestVerifier(backend)
	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: recipientAddr.Hex(),
		Amount:    decimal.NewFromInt(1),
		Asset:     types.NativeAsset,
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if result.Verified {
		t.Fatal("result verified, want no match for transfer below required - tolerance")
	}
	if result.Reason != types.ReasonNoMatch {
		t.Errorf("Reason = %s, want %s", result.Reason, types.ReasonNoMatch)
	}
}

func TestVerifyNativeRevertedTransferSkipped(t *testing.T) {
	now := time.Now()
	tx := nativeTx(recipientAddr, ether(2))

	backend := &fixtureBackend{
		head: 5,
		blocks: map[uint64]*ethtypes.Block{
			5: newBlock(5, now, tx),
		},
		receipts: map[common.Hash]*ethtypes.Receipt{
			tx.Hash(): {Status: ethtypes.ReceiptStatusFailed},
		},
	}
	for n := uint64(1); n < 5; n++ {
		backend.blocks[n] = newBlock(n, now.Add(-time.Minute))
	}

	verifier := newTestVerifier(backend)
	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: recipientAddr.Hex(),
		Amount:    decimal.NewFromInt(2),
		Asset:     "BNB",
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if result.Verified {
		t.Fatal("result verified, want reverted transfer to be rejected")
	}
}

func TestVerifyNativeStopsBeforeSinceTimestamp(t *testing.T) {
	since := time.Now().Add(-10 * time.Minute)
	tx := nativeTx(recipientAddr, ether(3))

	// The only matching transfer predates the query window.
	backend := &fixtureBackend{
		head: 300,
		blocks: map[uint64]*ethtypes.Block{
			300: newBlock(300, time.Now()),
			299: newBlock(299, since.Add(-time.Hour), tx),
		},
		receipts: map[common.Hash]*ethtypes.Receipt{
			tx.Hash(): {Status: ethtypes.ReceiptStatusSuccessful},
		},
	}

	verifier := newTestVerifier(backend)
	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:       "bnb",
		Recipient:      recipientAddr.Hex(),
		Amount:         decimal.NewFromInt(3),
		Asset:          types.NativeAsset,
		SinceTimestamp: since.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if result.Verified {
		t.Fatal("result verified, want transfers before sinceTimestamp ignored")
	}
	if result.Reason != types.ReasonNoMatch {
		t.Errorf("Reason = %s, want %s", result.Reason, types.ReasonNoMatch)
	}
}

func TestVerifyInvalidAddress(t *testing.T) {
	verifier := newTestVerifier(&fixtureBackend{})

	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: "not-an-address",
		Amount:    decimal.NewFromInt(1),
		Asset:     types.NativeAsset,
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if result.Verified || result.Reason != types.ReasonInvalidAddress {
		t.Errorf("Reason = %s, want %s", result.Reason, types.ReasonInvalidAddress)
	}
}

func TestVerifyTokenTransferFound(t *testing.T) {
	since := time.Now().Add(-5 * time.Minute)
	eventTime := since.Add(2 * time.Minute)
	txHash := common.HexToHash("0xdeadbeef")

	// 10.02 USDT with 6 decimals.
	raw := decimal.NewFromFloat(10.02).Mul(decimal.New(1, 6)).BigInt()

	backend := &fixtureBackend{
		head: 1000,
		logs: []ethtypes.Log{{
			Address: usdtContract,
			Topics: []common.Hash{
				transferTopic,
				common.BytesToHash(senderAddr.Bytes()),
				common.BytesToHash(recipientAddr.Bytes()),
			},
			Data:        common.LeftPadBytes(raw.Bytes(), 32),
			BlockNumber: 995,
			TxHash:      txHash,
		}},
		headers: map[uint64]*ethtypes.Header{
			995: {Number: big.NewInt(995), Time: uint64(eventTime.Unix())},
		},
		receipts: map[common.Hash]*ethtypes.Receipt{
			txHash: {Status: ethtypes.ReceiptStatusSuccessful},
		},
	}

	verifier := newTestVerifier(backend)
	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:       "bnb",
		Recipient:      recipientAddr.Hex(),
		Amount:         decimal.NewFromInt(10),
		Asset:          "USDT",
		SinceTimestamp: since.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if !result.Verified {
		t.Fatalf("result not verified: reason=%s message=%s", result.Reason, result.Message)
	}
	if !result.Amount.Equal(decimal.NewFromFloat(10.02)) {
		t.Errorf("Amount = %s, want 10.02", result.Amount)
	}
	if result.TokenSymbol != "USDT" {
		t.Errorf("TokenSymbol = %s, want USDT", result.TokenSymbol)
	}
	if result.From != senderAddr.Hex() {
		t.Errorf("From = %s, want %s", result.From, senderAddr.Hex())
	}
}

func TestVerifyTokenMismatchedRecipientRejected(t *testing.T) {
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")
	raw := decimal.NewFromInt(50).Mul(decimal.New(1, 6)).BigInt()
	txHash := common.HexToHash("0xfeedface")

	backend := &fixtureBackend{
		head: 100,
		logs: []ethtypes.Log{{
			Address: usdtContract,
			Topics: []common.Hash{
				transferTopic,
				common.BytesToHash(senderAddr.Bytes()),
				common.BytesToHash(other.Bytes()),
			},
			Data:        common.LeftPadBytes(raw.Bytes(), 32),
			BlockNumber: 99,
			TxHash:      txHash,
		}},
		receipts: map[common.Hash]*ethtypes.Receipt{
			txHash: {Status: ethtypes.ReceiptStatusSuccessful},
		},
	}

	verifier := newTestVerifier(backend)
	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: recipientAddr.Hex(),
		Amount:    decimal.NewFromInt(50),
		Asset:     "USDT",
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if result.Verified {
		t.Fatal("result verified, want mismatched recipient rejected")
	}
}

func TestVerifyTokenNotConfigured(t *testing.T) {
	verifier := newTestVerifier(&fixtureBackend{head: 10})

	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: recipientAddr.Hex(),
		Amount:    decimal.NewFromInt(1),
		Asset:     "SHIB",
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error: %v", err)
	}

	if result.Verified || result.Reason != types.ReasonUnsupported {
		t.Errorf("Reason = %s, want %s", result.Reason, types.ReasonUnsupported)
	}
}

type refusingConnector struct {
	dials int
}

func (c *refusingConnector) Dial(ctx context.Context, url string) (failover.Connection, error) {
	c.dials++
	return nil, errors.New("connection refused")
}

func TestVerifyAllEndpointsDownReturnsRPCUnavailable(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	config := &types.ChainConfig{
		Key:            "bnb",
		Name:           "BNB Chain",
		ChainType:      types.EVM,
		RpcUrls:        []string{"primary", "secondary", "tertiary"},
		NativeSymbol:   "BNB",
		NativeDecimals: 18,
		AvgBlockTime:   3,
	}
	policy := retry.DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	connector := &refusingConnector{}
	verifier := &evm{
		config: config,
		pool:   failover.NewPool(config.Name, config.RpcUrls, connector, policy, logger),
		logger: logger,
	}

	result, err := verifier.VerifyTransfer(context.Background(), &types.VerificationQuery{
		ChainKey:  "bnb",
		Recipient: recipientAddr.Hex(),
		Amount:    decimal.NewFromInt(1),
		Asset:     types.NativeAsset,
	})
	if err != nil {
		t.Fatalf("VerifyTransfer returned error with all endpoints down, want unverified result: %v", err)
	}

	if result.Verified || result.Reason != types.ReasonRPCUnavailable {
		t.Errorf("Reason = %s, want %s", result.Reason, types.ReasonRPCUnavailable)
	}
	if connector.dials != len(config.RpcUrls) {
		t.Errorf("dialed %d endpoints, want %d", connector.dials, len(config.RpcUrls))
	}
}

func TestIsRateLimitError(t *testing.T) {
	limited := []error{
		errors.New("429 Too Many Requests"),
		errors.New("403 Forbidden"),
		errors.New("daily request limit exceeded"),
		errors.New("rate limit reached, slow down"),
	}
	for _, err := range limited {
		if !isRateLimitError(err) {
			t.Errorf("isRateLimitError(%v) = false, want true", err)
		}
	}

	if isRateLimitError(errors.New("connection refused")) {
		t.Error("connectivity failure classified as rate limit")
	}
	if isRateLimitError(nil) {
		t.Error("nil error classified as rate limit")
	}
}

func TestScanWindowDerivesFromElapsedTime(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	config := &types.ChainConfig{
		Key:          "eth",
		Name:         "Ethereum",
		RpcUrls:      []string{"primary"},
		AvgBlockTime: 12,
	}
	verifier := &evm{
		config: config,
		pool:   failover.NewPool(config.Name, config.RpcUrls, connector{}, retry.DefaultPolicy(), logger),
		logger: logger,
	}

	// No timestamp: fixed conservative window.
	if got := verifier.scanWindow(time.Time{}, nativeLookbackCap); got != defaultLookback {
		t.Errorf("scanWindow(zero) = %d, want %d", got, defaultLookback)
	}

	// 10 minutes ago at 12s blocks: roughly 50 blocks plus the 20% buffer.
	got := verifier.scanWindow(time.Now().Add(-10*time.Minute), nativeLookbackCap)
	if got < 50 || got > 60 {
		t.Errorf("scanWindow(10m) = %d, want within [50, 60]", got)
	}

	// Very old timestamps hit the per-path cap.
	if got := verifier.scanWindow(time.Now().Add(-30*24*time.Hour), nativeLookbackCap); got != nativeLookbackCap {
		t.Errorf("scanWindow(30d) = %d, want cap %d", got, nativeLookbackCap)
	}
}
