package weighted

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/contracts"
	"vaultScope/internal/entity"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

var (
	poolAddr = common.HexToAddress("0x5c6ee304399dbdb9c8ef030ab642b10820db8f56")
	tokenA   = "0x000000000000000000000000000000000000000a"
	tokenB   = "0x000000000000000000000000000000000000000b"
)

func setup(t *testing.T, reader *contracts.Stub) (*entity.Repo, *model.Pool) {
	t.Helper()
	ctx := context.Background()
	repo := entity.New(store.NewMemory(), reader, nil)
	pool := entity.NewPool("0x01", entity.Addr(poolAddr), model.PoolTypeLiquidityBootstrapping, 1)
	pool.TokensList = []string{tokenA, tokenB}
	require.NoError(t, repo.Save(ctx, pool))
	for i, token := range pool.TokensList {
		_, err := repo.CreatePoolToken(ctx, pool, token, i, "")
		require.NoError(t, err)
	}
	return repo, pool
}

func TestUpdatePoolWeights(t *testing.T) {
	ctx := context.Background()
	reader := &contracts.Stub{Weights: map[common.Address][]*big.Int{
		poolAddr: {big.NewInt(8e17), big.NewInt(2e17)},
	}}
	repo, pool := setup(t, reader)

	ok, err := UpdatePoolWeights(ctx, repo, pool)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, pool.TotalWeight.Decimal.Equal(decimal.NewFromInt(1)))

	pt, err := repo.LoadPoolToken(ctx, pool.ID, tokenA)
	require.NoError(t, err)
	require.True(t, pt.Weight.Valid)
	require.Equal(t, "0.8", pt.Weight.Decimal.String())
}

func TestUpdatePoolWeightsRevertLeavesWeights(t *testing.T) {
	ctx := context.Background()
	repo, pool := setup(t, &contracts.Stub{})

	pt, err := repo.LoadPoolToken(ctx, pool.ID, tokenA)
	require.NoError(t, err)
	pt.Weight = decimal.NewNullDecimal(decimal.RequireFromString("0.5"))
	require.NoError(t, repo.Save(ctx, pt))

	ok, err := UpdatePoolWeights(ctx, repo, pool)
	require.NoError(t, err)
	require.False(t, ok)

	pt, err = repo.LoadPoolToken(ctx, pool.ID, tokenA)
	require.NoError(t, err)
	require.Equal(t, "0.5", pt.Weight.Decimal.String())
	require.False(t, pool.TotalWeight.Valid)
}

func TestUpdatePoolWeightsLengthMismatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	reader := &contracts.Stub{Weights: map[common.Address][]*big.Int{
		poolAddr: {big.NewInt(1e18), big.NewInt(0), big.NewInt(0)},
	}}
	repo, pool := setup(t, reader)

	ok, err := UpdatePoolWeights(ctx, repo, pool)
	require.NoError(t, err)
	require.False(t, ok)
	pt, err := repo.LoadPoolToken(ctx, pool.ID, tokenB)
	require.NoError(t, err)
	require.False(t, pt.Weight.Valid)
}

func TestSpotPrice(t *testing.T) {
	half := decimal.RequireFromString("0.5")
	price := SpotPrice(decimal.NewFromInt(1010), half, decimal.NewFromInt(1981), half)
	expected := decimal.NewFromInt(1010).DivRound(decimal.NewFromInt(1981), 30)
	require.True(t, price.Sub(expected).Abs().LessThan(decimal.New(1, -25)), price.String())

	require.True(t, SpotPrice(decimal.NewFromInt(1), decimal.Zero, decimal.NewFromInt(1), half).IsZero())
}
