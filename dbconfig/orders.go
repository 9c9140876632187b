package dbconfig

import (
	"context"
	"database/sql"

	"github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
)

const orderColumns = `
           id,
           from_chain,
           from_asset,
           to_chain,
           to_asset,
           from_amount,
           deposit_address,
           exchange_id,
           refund_address,
           status,
           deposit_tx_hash,
           payout_tx_hash,
           created_at,
           updated_at
`

// GetOrderByID returns an order by its internal id or an error if not found.
func (r *DBConfig) GetOrderByID(ctx context.Context, id int64) (*types.Order, error) {
	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `
       SELECT `+orderColumns+`
       FROM orders
       WHERE id = $1
    `, id)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	return order, nil
}

// GetOrdersByReferenceID returns all orders carrying the given provider
// reference id.
func (r *DBConfig) GetOrdersByReferenceID(ctx context.Context, referenceID string) ([]*types.Order, error) {
	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
       SELECT `+orderColumns+`
       FROM orders
       WHERE exchange_id = $1
       ORDER BY id ASC
    `, referenceID)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer rows.Close()

	var orders []*types.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.ErrDatabaseConnect
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	return orders, nil
}

// UpdateOrderStatus atomically replaces the order's status and transaction
// hashes in a single write.
func (r *DBConfig) UpdateOrderStatus(ctx context.Context, id int64, status types.OrderStatus, depositTxHash, payoutTxHash string) error {
	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return errors.ErrDatabaseConnect
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, `
       UPDATE orders
       SET
           status = $1,
           deposit_tx_hash = $2,
           payout_tx_hash = $3,
           updated_at = NOW()
       WHERE id = $4
    `, string(status), nullable(depositTxHash), nullable(payoutTxHash), id)
	if err != nil {
		return errors.ErrDatabaseConnect
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.ErrDatabaseConnect
	}
	if affected == 0 {
		return errors.ErrOrderNotFound
	}

	return nil
}

// CreateOrder inserts a new order in awaiting_deposit state and returns it
// with its assigned id.
func (r *DBConfig) CreateOrder(ctx context.Context, order *types.Order) (*types.Order, error) {
	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	created := *order
	created.Status = types.OrderAwaitingDeposit

	err = db.QueryRowContext(ctx, `
       INSERT INTO orders (
           from_chain,
           from_asset,
           to_chain,
           to_asset,
           from_amount,
           deposit_address,
           exchange_id,
           refund_address,
           status,
           created_at,
           updated_at
       )
       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
       RETURNING id, created_at, updated_at
    `,
		order.FromChain,
		order.FromAsset,
		order.ToChain,
		order.ToAsset,
		order.FromAmount.String(),
		nullable(order.DepositAddress),
		nullable(order.ExchangeID),
		nullable(order.RefundAddress),
		string(created.Status),
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	return &created, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*types.Order, error) {
	var order types.Order
	var depositAddress sql.NullString
	var exchangeID sql.NullString
	var refundAddress sql.NullString
	var status string
	var depositTxHash sql.NullString
	var payoutTxHash sql.NullString

	err := row.Scan(
		&order.ID,
		&order.FromChain,
		&order.FromAsset,
		&order.ToChain,
		&order.ToAsset,
		&order.FromAmount,
		&depositAddress,
		&exchangeID,
		&refundAddress,
		&status,
		&depositTxHash,
		&payoutTxHash,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if depositAddress.Valid {
		order.DepositAddress = depositAddress.String
	}
	if exchangeID.Valid {
		order.ExchangeID = exchangeID.String
	}
	if refundAddress.Valid {
		order.RefundAddress = refundAddress.String
	}
	if depositTxHash.Valid {
		order.DepositTxHash = depositTxHash.String
	}
	if payoutTxHash.Valid {
		order.PayoutTxHash = payoutTxHash.String
	}
	order.Status = types.OrderStatus(status)

	return &order, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
