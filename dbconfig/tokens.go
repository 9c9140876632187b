package dbconfig

import (
	"context"
	"database/sql"

	"github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/dbconfig/models"
)

// GetTokensByChainKey returns the active verifiable tokens for a chain.
func (r *DBConfig) GetTokensByChainKey(ctx context.Context, chainKey string) ([]models.Token, error) {
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
           symbol,
           contract_address,
           decimals,
           active,
           created_at,
           updated_at
       FROM chain_tokens
       WHERE chain_key = $1 AND active = true
       ORDER BY symbol ASC
    `, chainKey)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer rows.Close()

	var tokens []models.Token
	for rows.Next() {
		var token models.Token
		var contractAddress sql.NullString

		err := rows.Scan(
			&token.ID,
			&token.ChainKey,
			&token.Symbol,
			&contractAddress,
			&token.Decimals,
			&token.Active,
			&token.CreatedAt,
			&token.UpdatedAt,
		)
		if err != nil {
			return nil, errors.ErrDatabaseConnect
		}

		if contractAddress.Valid {
			token.ContractAddress = contractAddress.String
		}

		tokens = append(tokens, token)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	return tokens, nil
}

// GetTokenConfigs returns the runtime token configurations for a chain.
func (r *DBConfig) GetTokenConfigs(ctx context.Context, chainKey string) ([]types.TokenConfig, error) {
	tokens, err := r.GetTokensByChainKey(ctx, chainKey)
	if err != nil {
		return nil, err
	}

	var configs []types.TokenConfig
	for _, token := range tokens {
		configs = append(configs, types.TokenConfig{
			ChainKey:        token.ChainKey,
			Symbol:          token.Symbol,
			ContractAddress: token.ContractAddress,
			Decimals:        token.Decimals,
		})
	}

	return configs, nil
}
