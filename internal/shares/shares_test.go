package shares

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/entity"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

const (
	vaultAddr = "0xba12222222228d8ba445958a75a0704d566bf2c8"
	alice     = "0x00000000000000000000000000000000000a11ce"
	bob       = "0x0000000000000000000000000000000000000b0b"
)

func newLedger(t *testing.T) (*Ledger, *entity.Repo, *model.Pool) {
	t.Helper()
	repo := entity.New(store.NewMemory(), nil, nil)
	pool := entity.NewPool("0x01", "0x00000000000000000000000000000000000000b9", model.PoolTypeWeighted, 1)
	require.NoError(t, repo.Save(context.Background(), pool))
	return NewLedger(repo, vaultAddr), repo, pool
}

func balance(t *testing.T, repo *entity.Repo, pool *model.Pool, user string) decimal.Decimal {
	t.Helper()
	share, err := repo.PoolShare(context.Background(), pool.Address, user)
	require.NoError(t, err)
	return share.Balance
}

func TestMintTransferBurn(t *testing.T) {
	ctx := context.Background()
	ledger, repo, pool := newLedger(t)

	mv, err := ledger.Apply(ctx, pool, ZeroAddress, alice, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.True(t, mv.Mint)
	require.Equal(t, int64(1), pool.HoldersCount)
	require.True(t, pool.TotalShares.Equal(decimal.NewFromInt(10)))

	_, err = ledger.Apply(ctx, pool, alice, bob, decimal.NewFromInt(4))
	require.NoError(t, err)
	require.Equal(t, int64(2), pool.HoldersCount)
	require.True(t, pool.TotalShares.Equal(decimal.NewFromInt(10)))

	_, err = ledger.Apply(ctx, pool, alice, ZeroAddress, decimal.NewFromInt(6))
	require.NoError(t, err)
	require.Equal(t, int64(1), pool.HoldersCount)
	require.True(t, pool.TotalShares.Equal(decimal.NewFromInt(4)))
	require.True(t, balance(t, repo, pool, alice).IsZero())
	require.True(t, balance(t, repo, pool, bob).Equal(decimal.NewFromInt(4)))

	stored, err := repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalShares.Equal(decimal.NewFromInt(4)))
}

func TestCorrectPremint(t *testing.T) {
	ctx := context.Background()
	ledger, repo, pool := newLedger(t)

	_, err := ledger.Apply(ctx, pool, ZeroAddress, vaultAddr, MaxBPT)
	require.NoError(t, err)
	require.True(t, pool.TotalShares.Equal(MaxBPT))

	initial := decimal.NewFromInt(1000)
	require.NoError(t, ledger.CorrectPremint(ctx, pool, MaxBPT.Sub(initial)))
	require.True(t, pool.TotalShares.Equal(initial))
	require.True(t, balance(t, repo, pool, vaultAddr).Equal(initial))
}
