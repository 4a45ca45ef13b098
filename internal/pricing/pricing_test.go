package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

const (
	usd  = "0x00000000000000000000000000000000000000aa"
	weth = "0x00000000000000000000000000000000000000ee"
	gov  = "0x00000000000000000000000000000000000000bb"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(t *testing.T, thresholds Thresholds) (*Engine, *entity.Repo) {
	t.Helper()
	repo := entity.New(store.NewMemory(), nil, nil)
	registry, err := NewRegistry("local", []string{weth}, []string{usd})
	require.NoError(t, err)
	return NewEngine(repo, registry, thresholds, nil), repo
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry("mainnet", nil, nil)
	require.NoError(t, err)
	require.True(t, r.IsPricingAsset("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"))
	require.True(t, r.IsStable("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	require.False(t, r.IsStable("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"))

	local, err := NewRegistry("local", []string{weth}, []string{usd})
	require.NoError(t, err)
	require.Equal(t, []string{weth, usd}, local.PricingAssets())
	require.True(t, local.IsPricingAsset(usd))

	_, err = NewRegistry("nowhere", nil, nil)
	require.Error(t, err)
	_, err = NewRegistry("local", []string{"not-an-address"}, nil)
	require.Error(t, err)
}

func TestUSDPriceResolution(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, DefaultThresholds())

	p, err := e.USDPrice(ctx, usd)
	require.NoError(t, err)
	require.True(t, p.Valid && p.Decimal.Equal(fixed.One))

	p, err = e.USDPrice(ctx, weth)
	require.NoError(t, err)
	require.False(t, p.Valid)

	v, err := e.ValueInUSD(ctx, dec("3"), weth)
	require.NoError(t, err)
	require.True(t, v.IsZero())

	require.NoError(t, e.SetLatestPrice(ctx, weth, usd, "0x01", dec("2000"), 10, 1000))
	v, err = e.ValueInUSD(ctx, dec("3"), weth)
	require.NoError(t, err)
	require.True(t, v.Equal(dec("6000")))
}

func TestSwapValuePrefersStableLegs(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, DefaultThresholds())
	require.NoError(t, e.SetLatestPrice(ctx, weth, usd, "0x01", dec("2000"), 10, 1000))

	v, err := e.SwapValueInUSD(ctx, weth, dec("1"), usd, dec("1990"))
	require.NoError(t, err)
	require.True(t, v.Equal(dec("1990")))

	v, err = e.SwapValueInUSD(ctx, gov, dec("50"), weth, dec("2"))
	require.NoError(t, err)
	require.True(t, v.Equal(dec("4000")))

	v, err = e.SwapValueInUSD(ctx, gov, dec("50"), "0x00000000000000000000000000000000000000cc", dec("2"))
	require.NoError(t, err)
	require.True(t, v.IsZero())
}

func TestSetLatestPriceChainsThroughPricingAsset(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t, DefaultThresholds())
	require.NoError(t, e.SetLatestPrice(ctx, weth, usd, "0x01", dec("2000"), 10, 1000))
	require.NoError(t, e.SetLatestPrice(ctx, gov, weth, "0x02", dec("0.01"), 11, 1100))

	token, err := repo.LoadToken(ctx, gov)
	require.NoError(t, err)
	require.Equal(t, LatestPriceID(gov, weth), token.LatestPrice)
	require.True(t, token.LatestUSDPrice.Decimal.Equal(dec("20")))
	require.Equal(t, int64(1100), token.LatestUSDPriceTimestamp)
}

func TestCapturePricesBothPricingLegs(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t, Thresholds{MinPoolLiquidity: decimal.Zero, MinSwapValueUSD: decimal.Zero})
	pool := entity.NewPool("0x01", "0x00000000000000000000000000000000000000b9", model.PoolTypeStable, 1)

	n, err := e.CapturePrices(ctx, SwapObservation{
		Pool: pool, TokenIn: usd, TokenOut: weth,
		AmountIn: dec("2000"), AmountOut: dec("1"),
		BalanceIn: dec("100000"), BalanceOut: dec("50"),
		ValueUSD: dec("2000"), Block: 5, Timestamp: 500,
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	obs, err := store.Load[model.TokenPrice](ctx, repo.Store, TokenPriceID("0x01", weth, usd, 5))
	require.NoError(t, err)
	require.True(t, obs.Price.Equal(dec("2000")))
	obs, err = store.Load[model.TokenPrice](ctx, repo.Store, TokenPriceID("0x01", usd, weth, 5))
	require.NoError(t, err)
	require.True(t, obs.Price.Equal(dec("0.0005")))
}

func TestCapturePricesGates(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, DefaultThresholds())
	pool := entity.NewPool("0x01", "0x00000000000000000000000000000000000000b9", model.PoolTypeWeighted, 1)
	obs := SwapObservation{
		Pool: pool, TokenIn: usd, TokenOut: gov,
		AmountIn: dec("10"), AmountOut: dec("5"),
		BalanceIn: dec("10000"), BalanceOut: dec("5000"),
		ValueUSD: dec("10"),
	}

	n, err := e.CapturePrices(ctx, obs)
	require.NoError(t, err)
	require.Zero(t, n, "illiquid pool")

	pool.TotalLiquidity = dec("5000")
	obs.ValueUSD = dec("0.5")
	n, err = e.CapturePrices(ctx, obs)
	require.NoError(t, err)
	require.Zero(t, n, "dust swap")

	obs.ValueUSD = dec("10")
	obs.TokenOut = pool.Address
	n, err = e.CapturePrices(ctx, obs)
	require.NoError(t, err)
	require.Zero(t, n, "bpt leg")

	obs.TokenOut = gov
	n, err = e.CapturePrices(ctx, obs)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUpdatePoolLiquidityWithoutUSDRoute(t *testing.T) {
	ctx := context.Background()
	e, repo := newEngine(t, DefaultThresholds())
	pool := entity.NewPool("0x01", "0x00000000000000000000000000000000000000b9", model.PoolTypeWeighted, 1)
	pool.TokensList = []string{weth, gov}
	for i, token := range pool.TokensList {
		pt, err := repo.CreatePoolToken(ctx, pool, token, i, "")
		require.NoError(t, err)
		pt.Balance = dec("10")
		require.NoError(t, repo.Save(ctx, pt))
	}
	vault, err := repo.Vault(ctx)
	require.NoError(t, err)

	ok, err := e.UpdatePoolLiquidity(ctx, pool, vault, 1, 100)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, pool.TotalLiquidity.IsZero())

	require.NoError(t, e.SetLatestPrice(ctx, weth, usd, "0x02", dec("2000"), 1, 100))
	require.NoError(t, e.SetLatestPrice(ctx, gov, weth, "0x02", dec("0.5"), 1, 100))
	ok, err = e.UpdatePoolLiquidity(ctx, pool, vault, 2, 200)
	require.NoError(t, err)
	require.True(t, ok)
	// (10 + 10*0.5) weth at 2000 usd.
	require.True(t, pool.TotalLiquidity.Equal(dec("30000")))
	require.True(t, vault.TotalLiquidity.Equal(dec("30000")))

	hist, err := store.Load[model.PoolHistoricalLiquidity](ctx, repo.Store, HistoricalLiquidityID("0x01", weth, 2))
	require.NoError(t, err)
	require.True(t, hist.PoolLiquidity.Equal(dec("15")))
}
