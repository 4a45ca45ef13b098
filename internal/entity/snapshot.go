package entity

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

const secondsPerDay = 86400

// DayID is the daily bucket of a unix timestamp.
func DayID(ts int64) int64 {
	return ts / secondsPerDay
}

// SnapshotID is the id of the daily snapshot of id at ts.
func SnapshotID(id string, ts int64) string {
	return fmt.Sprintf("%s-%d", id, DayID(ts))
}

func dayStart(ts int64) int64 {
	return DayID(ts) * secondsPerDay
}

// UpdatePoolSnapshot copies the pool's running totals and token balances into its daily snapshot.
func (r *Repo) UpdatePoolSnapshot(ctx context.Context, pool *model.Pool, ts int64) error {
	tokens, err := r.PoolTokens(ctx, pool)
	if err != nil {
		return err
	}
	amounts := make([]decimal.Decimal, len(tokens))
	for i, pt := range tokens {
		amounts[i] = pt.Balance
	}
	id := SnapshotID(pool.ID, ts)
	snap, err := store.GetOrCreate[model.PoolSnapshot](ctx, r.Store, id, func() *model.PoolSnapshot {
		return &model.PoolSnapshot{ID: id, Pool: pool.ID, Timestamp: dayStart(ts)}
	})
	if err != nil {
		return err
	}
	snap.Amounts = amounts
	snap.TotalShares = pool.TotalShares
	snap.SwapVolume = pool.TotalSwapVolume
	snap.SwapFees = pool.TotalSwapFee
	snap.Liquidity = pool.TotalLiquidity
	snap.SwapsCount = pool.SwapsCount
	snap.HoldersCount = pool.HoldersCount
	snap.TotalProtocolFee = fixed.OrZero(pool.TotalProtocolFee)
	return store.Save(ctx, r.Store, snap)
}

func (r *Repo) UpdateTokenSnapshot(ctx context.Context, token *model.Token, ts int64) error {
	id := SnapshotID(token.ID, ts)
	snap, err := store.GetOrCreate[model.TokenSnapshot](ctx, r.Store, id, func() *model.TokenSnapshot {
		return &model.TokenSnapshot{ID: id, Token: token.ID, Timestamp: dayStart(ts)}
	})
	if err != nil {
		return err
	}
	snap.TotalBalanceNotional = token.TotalBalanceNotional
	snap.TotalBalanceUSD = token.TotalBalanceUSD
	snap.TotalVolumeNotional = token.TotalVolumeNotional
	snap.TotalVolumeUSD = token.TotalVolumeUSD
	snap.TotalSwapCount = token.TotalSwapCount
	return store.Save(ctx, r.Store, snap)
}

func (r *Repo) UpdateVaultSnapshot(ctx context.Context, vault *model.Balancer, ts int64) error {
	id := SnapshotID(vault.ID, ts)
	snap, err := store.GetOrCreate[model.BalancerSnapshot](ctx, r.Store, id, func() *model.BalancerSnapshot {
		return &model.BalancerSnapshot{ID: id, Vault: vault.ID, Timestamp: dayStart(ts)}
	})
	if err != nil {
		return err
	}
	snap.PoolCount = vault.PoolCount
	snap.TotalLiquidity = vault.TotalLiquidity
	snap.TotalSwapCount = vault.TotalSwapCount
	snap.TotalSwapVolume = vault.TotalSwapVolume
	snap.TotalSwapFee = vault.TotalSwapFee
	snap.TotalProtocolFee = fixed.OrZero(vault.TotalProtocolFee)
	return store.Save(ctx, r.Store, snap)
}

func (r *Repo) UpdateUserSnapshot(ctx context.Context, user *model.User, ts int64) error {
	id := SnapshotID(user.ID, ts)
	snap, err := store.GetOrCreate[model.UserSnapshot](ctx, r.Store, id, func() *model.UserSnapshot {
		return &model.UserSnapshot{ID: id, User: user.ID, Timestamp: dayStart(ts)}
	})
	if err != nil {
		return err
	}
	snap.TotalSwapVolume = user.TotalSwapVolume
	snap.TotalSwapFee = user.TotalSwapFee
	snap.TotalSwapCount = user.TotalSwapCount
	return store.Save(ctx, r.Store, snap)
}

func (r *Repo) UpdateTradePairSnapshot(ctx context.Context, pair *model.TradePair, ts int64) error {
	id := SnapshotID(pair.ID, ts)
	snap, err := store.GetOrCreate[model.TradePairSnapshot](ctx, r.Store, id, func() *model.TradePairSnapshot {
		return &model.TradePairSnapshot{ID: id, Pair: pair.ID, Timestamp: dayStart(ts)}
	})
	if err != nil {
		return err
	}
	snap.TotalSwapVolume = pair.TotalSwapVolume
	snap.TotalSwapFee = pair.TotalSwapFee
	return store.Save(ctx, r.Store, snap)
}
