package solana

import (
	"context"
	"time"

	"github.com/FluxPay/paycore-lib/failover"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// TransactionDetail is the slice of a confirmed Solana transaction the
// verifier needs: balance movements keyed by account index.
type TransactionDetail struct {
	Slot         uint64
	BlockTime    *time.Time
	AccountKeys  []sol.PublicKey
	PreBalances  []uint64
	PostBalances []uint64
	Err          interface{}
}

// Backend is the subset of Solana RPC the verifier needs. The production
// implementation wraps *rpc.Client; tests use a fixture.
type Backend interface {
	// Signatures returns up to limit most recent signatures for the account,
	// newest first.
	Signatures(ctx context.Context, account sol.PublicKey, limit int) ([]*rpc.TransactionSignature, error)

	// Transaction fetches one confirmed transaction by signature.
	Transaction(ctx context.Context, signature sol.Signature) (*TransactionDetail, error)
}

// connection wraps an rpc.Client as a failover.Connection and Backend.
// The liveness probe is a getHealth call.
type connection struct {
	client *rpc.Client
}

func (c *connection) Probe(ctx context.Context) error {
	health, err := c.client.GetHealth(ctx)
	if err != nil {
		return err
	}
	if health != rpc.HealthOk {
		return errors.Errorf("node health: %s", health)
	}
	return nil
}

func (c *connection) Close() {
	// rpc.Client holds no persistent connection worth closing.
}

func (c *connection) Signatures(ctx context.Context, account sol.PublicKey, limit int) ([]*rpc.TransactionSignature, error) {
	return c.client.GetSignaturesForAddressWithOpts(ctx, account, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentFinalized,
	})
}

func (c *connection) Transaction(ctx context.Context, signature sol.Signature) (*TransactionDetail, error) {
	maxVersion := uint64(0)
	result, err := c.client.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       sol.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if result == nil || result.Meta == nil || result.Transaction == nil {
		return nil, errors.New("incomplete transaction result")
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction")
	}

	detail := &TransactionDetail{
		Slot:         result.Slot,
		AccountKeys:  tx.Message.AccountKeys,
		PreBalances:  result.Meta.PreBalances,
		PostBalances: result.Meta.PostBalances,
		Err:          result.Meta.Err,
	}
	if result.BlockTime != nil {
		t := result.BlockTime.Time()
		detail.BlockTime = &t
	}

	return detail, nil
}

// connector dials Solana endpoints for the failover pool.
type connector struct{}

func (connector) Dial(ctx context.Context, url string) (failover.Connection, error) {
	return &connection{client: rpc.New(url)}, nil
}
