package dbconfig

import (
	"context"
	"database/sql"

	"github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/dbconfig/models"
)

// GetRequestByID returns a payment request by its id or an error if not found.
func (r *DBConfig) GetRequestByID(ctx context.Context, id int64) (*models.PaymentRequest, error) {
	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	var request models.PaymentRequest
	var asset sql.NullString

	err = db.QueryRowContext(ctx, `
       SELECT
           id,
           chain_key,
           recipient,
           amount,
           asset,
           active,
           created_at,
           updated_at
       FROM payment_requests
       WHERE id = $1
    `, id).Scan(
		&request.ID,
		&request.ChainKey,
		&request.Recipient,
		&request.Amount,
		&asset,
		&request.Active,
		&request.CreatedAt,
		&request.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.ErrRequestNotFound
	}

	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	if asset.Valid {
		request.Asset = asset.String
	}

	return &request, nil
}

// VerificationQuery builds the verification query for a payment request,
// using the request's creation time as the scan lower bound.
func (r *DBConfig) VerificationQuery(request *models.PaymentRequest) *types.VerificationQuery {
	return &types.VerificationQuery{
		ChainKey:       request.ChainKey,
		Recipient:      request.Recipient,
		Amount:         request.Amount,
		Asset:          request.Asset,
		SinceTimestamp: request.CreatedAt.UnixMilli(),
	}
}
