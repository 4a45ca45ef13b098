// Package stable tracks amplification ramps and computes the StableSwap invariant.
package stable

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/entity"
	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// AmpPrecision is the fixed factor applied to amplification values on-chain.
const AmpPrecision = 1000

var ampPrecision = big.NewInt(AmpPrecision)

// CurrentAmp interpolates a ramp at ts. Before the ramp it returns the start value,
// from the end timestamp on it returns the end value.
func CurrentAmp(update *model.AmpUpdate, ts int64) *big.Int {
	start := bigOrZero(update.StartAmp)
	end := bigOrZero(update.EndAmp)
	if ts >= update.EndTimestamp {
		return new(big.Int).Set(end)
	}
	if ts <= update.StartTimestamp {
		return new(big.Int).Set(start)
	}

	elapsed := big.NewInt(ts - update.StartTimestamp)
	duration := big.NewInt(update.EndTimestamp - update.StartTimestamp)
	if end.Cmp(start) > 0 {
		step := new(big.Int).Sub(end, start)
		step.Mul(step, elapsed).Quo(step, duration)
		return step.Add(start, step)
	}
	step := new(big.Int).Sub(start, end)
	step.Mul(step, elapsed).Quo(step, duration)
	return new(big.Int).Sub(start, step)
}

// UpdateAmpFactor writes the pool's current amp. It prefers the latest recorded ramp
// and falls back to getAmplificationParameter. A revert leaves the amp unchanged.
// The pool is mutated in place and saved.
func UpdateAmpFactor(ctx context.Context, repo *entity.Repo, pool *model.Pool, ts int64) error {
	precise, err := currentPreciseAmp(ctx, repo, pool, ts)
	if err != nil {
		return err
	}
	if precise == nil {
		return nil
	}
	pool.AmpPrecise = precise
	pool.Amp = new(big.Int).Quo(precise, ampPrecision)
	return repo.Save(ctx, pool)
}

func currentPreciseAmp(ctx context.Context, repo *entity.Repo, pool *model.Pool, ts int64) (*big.Int, error) {
	if pool.LatestAmpUpdate != "" {
		update, err := store.Load[model.AmpUpdate](ctx, repo.Store, pool.LatestAmpUpdate)
		if err != nil {
			return nil, err
		}
		if update != nil {
			return CurrentAmp(update, ts), nil
		}
	}
	value, precision, ok := repo.Reader.AmplificationParameter(ctx, common.HexToAddress(pool.Address))
	if !ok || precision == nil || precision.Sign() == 0 {
		repo.Logger.Debug("amplification parameter unavailable", zap.String("pool_id", pool.ID))
		return nil, nil
	}
	precise := new(big.Int).Mul(value, ampPrecision)
	return precise.Quo(precise, precision), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
