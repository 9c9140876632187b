package dbconfig

import (
	"context"
	"database/sql"

	"github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/dbconfig/models"
)

// GetRPCsByChainKey returns the active RPC endpoints for a chain, ordered by
// priority (primary first).
func (r *DBConfig) GetRPCsByChainKey(ctx context.Context, chainKey string) ([]models.RPC, error) {
	if chainKey == "" {
		return nil, errors.ErrInvalidChainKey
	}

	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
       SELECT
           id,
           chain_key,
           url,
           priority,
           active,
           created_at,
           updated_at
       FROM chain_rpcs
       WHERE chain_key = $1 AND active = true
       ORDER BY priority ASC
    `, chainKey)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer rows.Close()

	var rpcs []models.RPC
	for rows.Next() {
		var rpc models.RPC

		err := rows.Scan(
			&rpc.ID,
			&rpc.ChainKey,
			&rpc.URL,
			&rpc.Priority,
			&rpc.Active,
			&rpc.CreatedAt,
			&rpc.UpdatedAt,
		)
		if err != nil {
			return nil, errors.ErrDatabaseConnect
		}

		rpcs = append(rpcs, rpc)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	return rpcs, nil
}
