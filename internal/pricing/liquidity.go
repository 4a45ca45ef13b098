package pricing

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// UpdatePoolLiquidity revalues the pool through its pricing assets, tried in
// tokensList order; the first one that yields a USD value wins. pool and vault are
// updated in place and saved.
func (e *Engine) UpdatePoolLiquidity(ctx context.Context, pool *model.Pool, vault *model.Balancer, block uint64, ts int64) (bool, error) {
	if len(pool.TokensList) < 2 {
		return false, nil
	}
	for _, token := range pool.TokensList {
		if !e.registry.IsPricingAsset(token) {
			continue
		}
		ok, err := e.updateLiquidityIn(ctx, pool, vault, token, block, ts)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) updateLiquidityIn(ctx context.Context, pool *model.Pool, vault *model.Balancer, pricingAsset string, block uint64, ts int64) (bool, error) {
	tokens, err := e.repo.PoolTokens(ctx, pool)
	if err != nil {
		return false, err
	}

	poolValue := fixed.Zero
	for _, pt := range tokens {
		if pt.Address == pricingAsset {
			poolValue = poolValue.Add(pt.Balance)
			continue
		}
		// BPT held by its own pool is not liquidity.
		if pt.Address == pool.Address {
			continue
		}
		price, err := e.priceIn(ctx, pool.ID, pt.Address, pricingAsset, block)
		if err != nil {
			return false, err
		}
		if price.Valid {
			poolValue = poolValue.Add(price.Decimal.Mul(pt.Balance))
		}
	}

	newLiquidity, err := e.ValueInUSD(ctx, poolValue, pricingAsset)
	if err != nil {
		return false, err
	}
	// A non-empty pool valued at zero means the pricing asset has no USD route yet.
	if poolValue.IsPositive() != newLiquidity.IsPositive() {
		e.logger.Debug("pricing asset has no usd route",
			zap.String("pool_id", pool.ID), zap.String("token", pricingAsset))
		return false, nil
	}

	if err := e.AddHistoricalRecord(ctx, pool, pricingAsset, poolValue, block); err != nil {
		return false, err
	}

	change := newLiquidity.Sub(pool.TotalLiquidity)
	pool.TotalLiquidity = newLiquidity
	vault.TotalLiquidity = vault.TotalLiquidity.Add(change)
	if err := e.repo.Save(ctx, pool, vault); err != nil {
		return false, err
	}
	if err := e.repo.UpdateVaultSnapshot(ctx, vault, ts); err != nil {
		return false, err
	}
	return true, nil
}

// priceIn prefers this block's observation in this pool, then the latest price.
func (e *Engine) priceIn(ctx context.Context, poolID, asset, pricingAsset string, block uint64) (decimal.NullDecimal, error) {
	observed, err := store.Load[model.TokenPrice](ctx, e.repo.Store, TokenPriceID(poolID, asset, pricingAsset, block))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if observed != nil {
		return fixed.Some(observed.Price), nil
	}
	latest, err := store.Load[model.LatestPrice](ctx, e.repo.Store, LatestPriceID(asset, pricingAsset))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if latest != nil {
		return fixed.Some(latest.Price), nil
	}
	return decimal.NullDecimal{}, nil
}

// AddHistoricalRecord writes the pool's value in pricingAsset units at block.
func (e *Engine) AddHistoricalRecord(ctx context.Context, pool *model.Pool, pricingAsset string, poolValue decimal.Decimal, block uint64) error {
	shareValue := fixed.Zero
	if pool.TotalShares.IsPositive() {
		shareValue = fixed.Div(poolValue, pool.TotalShares)
	}
	return store.Save(ctx, e.repo.Store, &model.PoolHistoricalLiquidity{
		ID:              HistoricalLiquidityID(pool.ID, pricingAsset, block),
		PoolID:          pool.ID,
		PoolTotalShares: pool.TotalShares,
		PoolLiquidity:   poolValue,
		PoolShareValue:  shareValue,
		PricingAsset:    pricingAsset,
		Block:           block,
	})
}
