// Package weighted refreshes normalized weights and prices weighted pools.
package weighted

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
)

// UpdatePoolWeights reads the pool's normalized weights and writes them to its
// PoolTokens and TotalWeight. It is all or nothing: on a revert or a length
// mismatch nothing changes. The pool is mutated in place and saved.
func UpdatePoolWeights(ctx context.Context, repo *entity.Repo, pool *model.Pool) (bool, error) {
	raw, ok := repo.Reader.NormalizedWeights(ctx, common.HexToAddress(pool.Address))
	if !ok {
		repo.Logger.Debug("normalized weights reverted", zap.String("pool_id", pool.ID))
		return false, nil
	}
	tokens, err := repo.PoolTokens(ctx, pool)
	if err != nil {
		return false, err
	}

	// Managed pools register their own BPT with the vault but report no weight for it.
	weighted := make([]*model.PoolToken, 0, len(tokens))
	for _, pt := range tokens {
		if len(raw) == len(tokens)-1 && pt.Address == pool.Address {
			continue
		}
		weighted = append(weighted, pt)
	}
	if len(weighted) != len(raw) {
		repo.Logger.Warn("normalized weights length mismatch",
			zap.String("pool_id", pool.ID), zap.Int("weights", len(raw)), zap.Int("tokens", len(weighted)))
		return false, nil
	}

	total := fixed.Zero
	entities := make([]model.Entity, 0, len(weighted)+1)
	for i, pt := range weighted {
		w := fixed.ScaleDown(raw[i], 18)
		pt.Weight = fixed.Some(w)
		total = total.Add(w)
		entities = append(entities, pt)
	}
	pool.TotalWeight = fixed.Some(total)
	entities = append(entities, pool)
	if err := repo.Save(ctx, entities...); err != nil {
		return false, err
	}
	return true, nil
}

// SpotPrice is the price of the other token in units of the base token,
// (balanceBase/weightBase)/(balanceOther/weightOther). Zero weights or balances yield zero.
func SpotPrice(balanceBase, weightBase, balanceOther, weightOther decimal.Decimal) decimal.Decimal {
	return fixed.Div(fixed.Div(balanceBase, weightBase), fixed.Div(balanceOther, weightOther))
}
