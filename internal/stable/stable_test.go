package stable

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

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestCurrentAmpRamp(t *testing.T) {
	up := &model.AmpUpdate{StartTimestamp: 1000, EndTimestamp: 2000, StartAmp: big.NewInt(100), EndAmp: big.NewInt(500)}
	cases := []struct {
		ts   int64
		want int64
	}{
		{999, 100},
		{1000, 100},
		{1500, 300},
		{2000, 500},
		{5000, 500},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CurrentAmp(up, tc.ts).Int64(), "ts=%d", tc.ts)
	}

	down := &model.AmpUpdate{StartTimestamp: 1000, EndTimestamp: 2000, StartAmp: big.NewInt(500), EndAmp: big.NewInt(100)}
	require.Equal(t, int64(300), CurrentAmp(down, 1500).Int64())
	require.Equal(t, int64(400), CurrentAmp(down, 1250).Int64())
	require.Equal(t, int64(100), CurrentAmp(down, 2000).Int64())
}

func TestCalculateInvariantEqualBalances(t *testing.T) {
	d, converged, err := CalculateInvariant(big.NewInt(200*AmpPrecision), []*big.Int{e18(1000), e18(1000)})
	require.NoError(t, err)
	require.True(t, converged)
	diff := new(big.Int).Sub(d, e18(2000))
	require.True(t, diff.CmpAbs(big.NewInt(1)) <= 0, "got %s", d)
}

func TestCalculateInvariantImbalanced(t *testing.T) {
	d, converged, err := CalculateInvariant(big.NewInt(100*AmpPrecision), []*big.Int{e18(1500), e18(500), e18(1000)})
	require.NoError(t, err)
	require.True(t, converged)
	// The invariant of an imbalanced stable pool sits just below the plain sum.
	require.True(t, d.Cmp(e18(3000)) < 0)
	require.True(t, d.Cmp(e18(2990)) > 0)
}

func TestCalculateInvariantZeroSum(t *testing.T) {
	d, converged, err := CalculateInvariant(big.NewInt(200*AmpPrecision), []*big.Int{new(big.Int), new(big.Int)})
	require.NoError(t, err)
	require.True(t, converged)
	require.Zero(t, d.Sign())
}

func TestUpdateAmpFactorPrefersRamp(t *testing.T) {
	ctx := context.Background()
	addr := common.HexToAddress("0x06df3b2bbb68adc8b0e302443692037ed9f91b42")
	reader := &contracts.Stub{Amps: map[common.Address][2]*big.Int{addr: {big.NewInt(50000), big.NewInt(1000)}}}
	repo := entity.New(store.NewMemory(), reader, nil)

	pool := entity.NewPool("0x01", entity.Addr(addr), model.PoolTypeStable, 1)
	require.NoError(t, UpdateAmpFactor(ctx, repo, pool, 10))
	require.Equal(t, int64(50), pool.Amp.Int64())
	require.Equal(t, int64(50000), pool.AmpPrecise.Int64())

	ramp := &model.AmpUpdate{ID: "ramp", PoolID: pool.ID, StartTimestamp: 0, EndTimestamp: 100, StartAmp: big.NewInt(50000), EndAmp: big.NewInt(150000)}
	require.NoError(t, repo.Save(ctx, ramp))
	pool.LatestAmpUpdate = ramp.ID
	require.NoError(t, UpdateAmpFactor(ctx, repo, pool, 50))
	require.Equal(t, int64(100), pool.Amp.Int64())
	require.Equal(t, int64(100000), pool.AmpPrecise.Int64())
}

func TestUpdateJoinExitInvariantSkipsBPT(t *testing.T) {
	ctx := context.Background()
	addr := "0x00000000000000000000000000000000000000b9"
	repo := entity.New(store.NewMemory(), nil, nil)
	pool := entity.NewPool("0x01", addr, model.PoolTypeComposableStable, 1)
	pool.AmpPrecise = big.NewInt(200 * AmpPrecision)
	pool.TokensList = []string{"0x000000000000000000000000000000000000000a", addr, "0x000000000000000000000000000000000000000b"}
	require.NoError(t, repo.Save(ctx, pool))
	for i, token := range pool.TokensList {
		pt, err := repo.CreatePoolToken(ctx, pool, token, i, "")
		require.NoError(t, err)
		pt.Balance = decimal.NewFromInt(1000)
		if token == addr {
			pt.Balance = decimal.RequireFromString("5192296858534827")
		}
		require.NoError(t, repo.Save(ctx, pt))
	}

	require.NoError(t, UpdateJoinExitInvariant(ctx, repo, pool, "0xabc1", 0))
	require.True(t, pool.LastPostJoinExitInvariant.Valid)
	require.Equal(t, "2000", pool.LastPostJoinExitInvariant.Decimal.String())
	require.Equal(t, int64(200000), pool.LastJoinExitAmp.Int64())
}
