package stable

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
)

// MaxInvariantIterations bounds the fixed-point iteration.
const MaxInvariantIterations = 255

var errOverflow = errors.New("invariant arithmetic overflow")

// CalculateInvariant solves the StableSwap invariant D for balances normalized to
// 18 decimals and an amp that carries AmpPrecision. converged is false when the
// iteration budget ran out; D is then the last computed value.
func CalculateInvariant(amp *big.Int, balances []*big.Int) (d *big.Int, converged bool, err error) {
	a, overflow := uint256.FromBig(amp)
	if overflow {
		return nil, false, errOverflow
	}
	n := uint256.NewInt(uint64(len(balances)))
	bs := make([]*uint256.Int, len(balances))
	sum := new(uint256.Int)
	for i, b := range balances {
		v, overflow := uint256.FromBig(b)
		if overflow {
			return nil, false, errOverflow
		}
		bs[i] = v
		if _, overflow := sum.AddOverflow(sum, v); overflow {
			return nil, false, errOverflow
		}
	}
	if sum.IsZero() {
		return new(big.Int), true, nil
	}

	precision := uint256.NewInt(AmpPrecision)
	ampTimesN := new(uint256.Int)
	if _, overflow := ampTimesN.MulOverflow(a, n); overflow {
		return nil, false, errOverflow
	}
	if ampTimesN.Lt(precision) {
		return nil, false, errors.New("amp below precision")
	}
	nPlusOne := new(uint256.Int).AddUint64(n, 1)

	inv := new(uint256.Int).Set(sum)
	for i := 0; i < MaxInvariantIterations; i++ {
		dp := new(uint256.Int).Set(inv)
		for _, b := range bs {
			denom, overflow := new(uint256.Int).MulOverflow(b, n)
			if overflow {
				return nil, false, errOverflow
			}
			if denom.IsZero() {
				return new(big.Int), false, errors.New("zero balance")
			}
			if _, overflow := dp.MulOverflow(dp, inv); overflow {
				return nil, false, errOverflow
			}
			dp.Div(dp, denom)
		}

		// numerator = (A*N*S/P + D_P*N) * D
		num, overflow := new(uint256.Int).MulOverflow(ampTimesN, sum)
		if overflow {
			return nil, false, errOverflow
		}
		num.Div(num, precision)
		dpn, overflow := new(uint256.Int).MulOverflow(dp, n)
		if overflow {
			return nil, false, errOverflow
		}
		if _, overflow := num.AddOverflow(num, dpn); overflow {
			return nil, false, errOverflow
		}
		if _, overflow := num.MulOverflow(num, inv); overflow {
			return nil, false, errOverflow
		}

		// denominator = (A*N - P)*D/P + D_P*(N+1)
		den := new(uint256.Int).Sub(ampTimesN, precision)
		if _, overflow := den.MulOverflow(den, inv); overflow {
			return nil, false, errOverflow
		}
		den.Div(den, precision)
		dpn1, overflow := new(uint256.Int).MulOverflow(dp, nPlusOne)
		if overflow {
			return nil, false, errOverflow
		}
		if _, overflow := den.AddOverflow(den, dpn1); overflow {
			return nil, false, errOverflow
		}

		prev := inv
		inv = num.Div(num, den)
		if absDiffAtMostOne(inv, prev) {
			return inv.ToBig(), true, nil
		}
	}
	return inv.ToBig(), false, nil
}

func absDiffAtMostOne(a, b *uint256.Int) bool {
	diff := new(uint256.Int)
	if a.Gt(b) {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return diff.LtUint64(2)
}

// UpdateJoinExitInvariant records the post join/exit invariant and amp of a
// composable stable pool. Balances exclude the pool's own BPT and are rate-adjusted.
// Non-convergence and arithmetic failures are logged, never returned.
func UpdateJoinExitInvariant(ctx context.Context, repo *entity.Repo, pool *model.Pool, eventID string, ts int64) error {
	if pool.AmpPrecise == nil {
		if err := UpdateAmpFactor(ctx, repo, pool, ts); err != nil {
			return err
		}
		if pool.AmpPrecise == nil {
			return nil
		}
	}
	tokens, err := repo.PoolTokens(ctx, pool)
	if err != nil {
		return err
	}
	balances := make([]*big.Int, 0, len(tokens))
	for _, pt := range tokens {
		if strings.EqualFold(pt.Address, pool.Address) {
			continue
		}
		balances = append(balances, fixed.ScaleUp(pt.Balance.Mul(pt.PriceRate), 18))
	}
	if len(balances) == 0 {
		return nil
	}

	inv, converged, err := CalculateInvariant(pool.AmpPrecise, balances)
	if err != nil {
		repo.Logger.Warn("invariant not computed",
			zap.String("pool_id", pool.ID), zap.String("event_id", eventID), zap.Error(err))
		return nil
	}
	if !converged {
		repo.Logger.Warn("invariant did not converge",
			zap.String("pool_id", pool.ID), zap.String("event_id", eventID), zap.Int("iterations", MaxInvariantIterations))
	}
	pool.LastPostJoinExitInvariant = fixed.Some(fixed.ScaleDown(inv, 18))
	pool.LastJoinExitAmp = new(big.Int).Set(pool.AmpPrecise)
	return repo.Save(ctx, pool)
}
