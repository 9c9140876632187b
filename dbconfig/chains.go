package dbconfig

import (
	"context"
	"database/sql"
	"strings"

	"github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/FluxPay/paycore-lib/dbconfig/models"
)

// GetChains returns all chains from the database, optionally filtering by active status.
func (r *DBConfig) GetChains(ctx context.Context, activeOnly bool) ([]models.Chain, error) {
	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	query := `
      SELECT
          id,
          chain_key,
          name,
          chain_type,
          native_symbol,
          native_decimals,
          avg_block_time,
          active,
          created_at,
          updated_at
      FROM chains
  `

	var args []interface{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}

	query += " ORDER BY chain_key ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer rows.Close()

	var chains []models.Chain
	for rows.Next() {
		var chain models.Chain
		var chainType sql.NullString
		var nativeSymbol sql.NullString
		var avgBlockTime sql.NullFloat64

		err := rows.Scan(
			&chain.ID,
			&chain.Key,
			&chain.Name,
			&chainType,
			&nativeSymbol,
			&chain.NativeDecimals,
			&avgBlockTime,
			&chain.Active,
			&chain.CreatedAt,
			&chain.UpdatedAt,
		)
		if err != nil {
			return nil, errors.ErrDatabaseConnect
		}

		if chainType.Valid {
			chain.Type = strings.ToUpper(chainType.String)
		}
		if nativeSymbol.Valid {
			chain.NativeSymbol = nativeSymbol.String
		}
		if avgBlockTime.Valid {
			chain.AvgBlockTime = avgBlockTime.Float64
		}

		chains = append(chains, chain)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	return chains, nil
}

// GetChainByKey returns a chain by its key from the database or an error if not found.
func (r *DBConfig) GetChainByKey(ctx context.Context, chainKey string) (*models.Chain, error) {
	if chainKey == "" {
		return nil, errors.ErrInvalidChainKey
	}

	db, err := sql.Open("postgres", r.dbConnStr)
	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}
	defer db.Close()

	var chain models.Chain
	var chainType sql.NullString
	var nativeSymbol sql.NullString
	var avgBlockTime sql.NullFloat64

	err = db.QueryRowContext(ctx, `
       SELECT
           id,
           chain_key,
           name,
           chain_type,
           native_symbol,
           native_decimals,
           avg_block_time,
           active,
           created_at,
           updated_at
       FROM chains
       WHERE chain_key = $1
    `, chainKey).Scan(
		&chain.ID,
		&chain.Key,
		&chain.Name,
		&chainType,
		&nativeSymbol,
		&chain.NativeDecimals,
		&avgBlockTime,
		&chain.Active,
		&chain.CreatedAt,
		&chain.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.ErrChainNotFound
	}

	if err != nil {
		return nil, errors.ErrDatabaseConnect
	}

	if chainType.Valid {
		chain.Type = strings.ToUpper(chainType.String)
	}
	if nativeSymbol.Valid {
		chain.NativeSymbol = nativeSymbol.String
	}
	if avgBlockTime.Valid {
		chain.AvgBlockTime = avgBlockTime.Float64
	}

	return &chain, nil
}

// GetChainConfigs assembles runtime chain configurations for all active
// chains, with each chain's RPC endpoints ordered by priority.
func (r *DBConfig) GetChainConfigs(ctx context.Context) ([]types.ChainConfig, error) {
	chains, err := r.GetChains(ctx, true)
	if err != nil {
		return nil, err
	}

	var configs []types.ChainConfig
	for _, chain := range chains {
		rpcs, err := r.GetRPCsByChainKey(ctx, chain.Key)
		if err != nil {
			return nil, err
		}

		urls := make([]string, 0, len(rpcs))
		for _, rpc := range rpcs {
			urls = append(urls, rpc.URL)
		}

		configs = append(configs, types.ChainConfig{
			Key:            chain.Key,
			Name:           chain.Name,
			ChainType:      types.ParseChainType(chain.Type),
			RpcUrls:        urls,
			NativeSymbol:   chain.NativeSymbol,
			NativeDecimals: chain.NativeDecimals,
			AvgBlockTime:   chain.AvgBlockTime,
		})
	}

	return configs, nil
}
