package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
	"vaultScope/internal/weighted"
)

// Thresholds gate price observations against manipulation through tiny trades
// on illiquid pools.
type Thresholds struct {
	MinPoolLiquidity decimal.Decimal
	MinSwapValueUSD  decimal.Decimal
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPoolLiquidity: decimal.NewFromInt(2000),
		MinSwapValueUSD:  decimal.NewFromInt(1),
	}
}

// Engine maintains prices and pool liquidity.
type Engine struct {
	repo       *entity.Repo
	registry   *Registry
	thresholds Thresholds
	logger     *zap.Logger
}

func NewEngine(repo *entity.Repo, registry *Registry, thresholds Thresholds, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: repo, registry: registry, thresholds: thresholds, logger: logger}
}

func (e *Engine) Registry() *Registry { return e.registry }

func LatestPriceID(asset, pricingAsset string) string {
	return strings.ToLower(asset) + "-" + strings.ToLower(pricingAsset)
}

func TokenPriceID(poolID, asset, pricingAsset string, block uint64) string {
	return fmt.Sprintf("%s-%s-%s-%d", poolID, strings.ToLower(asset), strings.ToLower(pricingAsset), block)
}

func HistoricalLiquidityID(poolID, pricingAsset string, block uint64) string {
	return fmt.Sprintf("%s-%s-%d", poolID, strings.ToLower(pricingAsset), block)
}

// USDPrice resolves the USD price of one unit of token, or an invalid value when unpriced.
func (e *Engine) USDPrice(ctx context.Context, token string) (decimal.NullDecimal, error) {
	if e.registry.IsStable(token) {
		return fixed.Some(fixed.One), nil
	}
	t, err := e.repo.LoadToken(ctx, token)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if t != nil && t.LatestUSDPrice.Valid {
		return t.LatestUSDPrice, nil
	}
	for _, stable := range e.registry.StableAssets() {
		latest, err := store.Load[model.LatestPrice](ctx, e.repo.Store, LatestPriceID(token, stable))
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		if latest != nil {
			return fixed.Some(latest.Price), nil
		}
	}
	return decimal.NullDecimal{}, nil
}

// ValueInUSD values amount of token in USD; unpriced tokens are worth zero.
func (e *Engine) ValueInUSD(ctx context.Context, amount decimal.Decimal, token string) (decimal.Decimal, error) {
	price, err := e.USDPrice(ctx, token)
	if err != nil {
		return fixed.Zero, err
	}
	if !price.Valid {
		return fixed.Zero, nil
	}
	return amount.Mul(price.Decimal), nil
}

// SwapValueInUSD values a trade through a stable leg first, then through whichever
// leg has a USD price, tokenIn first. Zero means unpriced.
func (e *Engine) SwapValueInUSD(ctx context.Context, tokenIn string, amountIn decimal.Decimal, tokenOut string, amountOut decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case e.registry.IsStable(tokenIn):
		return amountIn, nil
	case e.registry.IsStable(tokenOut):
		return amountOut, nil
	}
	priceIn, err := e.USDPrice(ctx, tokenIn)
	if err != nil {
		return fixed.Zero, err
	}
	if priceIn.Valid {
		return amountIn.Mul(priceIn.Decimal), nil
	}
	priceOut, err := e.USDPrice(ctx, tokenOut)
	if err != nil {
		return fixed.Zero, err
	}
	if priceOut.Valid {
		return amountOut.Mul(priceOut.Decimal), nil
	}
	return fixed.Zero, nil
}

// SetLatestPrice overwrites the latest asset/pricingAsset observation and refreshes
// the asset's USD price when the pricing asset itself is priced.
func (e *Engine) SetLatestPrice(ctx context.Context, asset, pricingAsset, poolID string, price decimal.Decimal, block uint64, ts int64) error {
	latest := &model.LatestPrice{
		ID:           LatestPriceID(asset, pricingAsset),
		Asset:        strings.ToLower(asset),
		PricingAsset: strings.ToLower(pricingAsset),
		PoolID:       poolID,
		Price:        price,
		Block:        block,
	}
	if err := store.Save(ctx, e.repo.Store, latest); err != nil {
		return err
	}

	token, err := e.repo.Token(ctx, asset)
	if err != nil {
		return err
	}
	token.LatestPrice = latest.ID
	paUSD, err := e.USDPrice(ctx, pricingAsset)
	if err != nil {
		return err
	}
	if paUSD.Valid {
		token.LatestUSDPrice = fixed.Some(price.Mul(paUSD.Decimal))
		token.LatestUSDPriceTimestamp = ts
	}
	return store.Save(ctx, e.repo.Store, token)
}

// SwapObservation is a swap seen from the pricing side, with post-swap balances.
type SwapObservation struct {
	Pool       *model.Pool
	TokenIn    string
	TokenOut   string
	AmountIn   decimal.Decimal
	AmountOut  decimal.Decimal
	BalanceIn  decimal.Decimal
	BalanceOut decimal.Decimal
	WeightIn   decimal.NullDecimal
	WeightOut  decimal.NullDecimal
	ValueUSD   decimal.Decimal
	Block      uint64
	Timestamp  int64
}

// CapturePrices records a price observation for the non-pricing leg of a swap,
// or both legs when both are pricing assets. It returns how many were recorded.
func (e *Engine) CapturePrices(ctx context.Context, obs SwapObservation) (int, error) {
	pool := obs.Pool
	if strings.EqualFold(obs.TokenIn, pool.Address) || strings.EqualFold(obs.TokenOut, pool.Address) {
		return 0, nil
	}
	if pool.TotalLiquidity.LessThan(e.thresholds.MinPoolLiquidity) {
		return 0, nil
	}
	if obs.ValueUSD.LessThan(e.thresholds.MinSwapValueUSD) {
		return 0, nil
	}

	recorded := 0
	if e.registry.IsPricingAsset(obs.TokenIn) {
		price := spotOrRatio(obs.BalanceIn, obs.WeightIn, obs.BalanceOut, obs.WeightOut, obs.AmountIn, obs.AmountOut)
		if err := e.record(ctx, pool.ID, obs.TokenOut, obs.TokenIn, obs.AmountOut, price, obs.Block, obs.Timestamp); err != nil {
			return recorded, err
		}
		recorded++
	}
	if e.registry.IsPricingAsset(obs.TokenOut) {
		price := spotOrRatio(obs.BalanceOut, obs.WeightOut, obs.BalanceIn, obs.WeightIn, obs.AmountOut, obs.AmountIn)
		if err := e.record(ctx, pool.ID, obs.TokenIn, obs.TokenOut, obs.AmountIn, price, obs.Block, obs.Timestamp); err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}

// spotOrRatio prices the "other" token in units of the "base" token.
func spotOrRatio(baseBalance decimal.Decimal, baseWeight decimal.NullDecimal, otherBalance decimal.Decimal, otherWeight decimal.NullDecimal, baseAmount, otherAmount decimal.Decimal) decimal.Decimal {
	if baseWeight.Valid && otherWeight.Valid {
		return weighted.SpotPrice(baseBalance, baseWeight.Decimal, otherBalance, otherWeight.Decimal)
	}
	return fixed.Div(baseAmount, otherAmount)
}

func (e *Engine) record(ctx context.Context, poolID, asset, pricingAsset string, amount, price decimal.Decimal, block uint64, ts int64) error {
	observation := &model.TokenPrice{
		ID:           TokenPriceID(poolID, asset, pricingAsset, block),
		PoolID:       poolID,
		Asset:        strings.ToLower(asset),
		PricingAsset: strings.ToLower(pricingAsset),
		Amount:       amount,
		Price:        price,
		Block:        block,
		Timestamp:    ts,
	}
	if err := store.Save(ctx, e.repo.Store, observation); err != nil {
		return err
	}
	return e.SetLatestPrice(ctx, asset, pricingAsset, poolID, price, block, ts)
}
