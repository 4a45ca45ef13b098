package vault

import (
	"context"

	"github.com/shopspring/decimal"

	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/shares"
	"vaultScope/internal/stable"
	"vaultScope/internal/store"
	"vaultScope/internal/weighted"
)

// HandleSwap applies a vault Swap. Pool and token balances move whether or not the
// trade could be priced.
func (p *Processor) HandleSwap(ctx context.Context, ev *model.TypedEvent, data model.SwapEventData) error {
	pool, err := p.loadPool(ctx, ev, entity.PoolID(data.PoolID))
	if err != nil || pool == nil {
		return err
	}
	ts := ev.Time()

	// Both legs must resolve before the weight or amp refresh writes the pool.
	tokenIn, tokenOut := entity.Addr(data.TokenIn), entity.Addr(data.TokenOut)
	for _, token := range []string{tokenIn, tokenOut} {
		if _, err := p.poolToken(ctx, pool, token); err != nil {
			return err
		}
	}

	switch {
	case pool.PoolType.IsVariableWeight():
		if _, err := weighted.UpdatePoolWeights(ctx, p.repo, pool); err != nil {
			return err
		}
	case pool.PoolType.IsStableLike():
		if err := stable.UpdateAmpFactor(ctx, p.repo, pool, ts); err != nil {
			return err
		}
	}

	// Reloaded so the refreshed weights are kept.
	ptIn, err := p.poolToken(ctx, pool, tokenIn)
	if err != nil {
		return err
	}
	ptOut, err := p.poolToken(ctx, pool, tokenOut)
	if err != nil {
		return err
	}
	amountIn := fixed.ScaleDown(data.AmountIn, ptIn.Decimals)
	amountOut := fixed.ScaleDown(data.AmountOut, ptOut.Decimals)

	bptIn, bptOut := isBPT(pool, tokenIn), isBPT(pool, tokenOut)
	if pool.PoolType.HasVirtualSupply() {
		if bptIn {
			if err := p.shares.CorrectPremint(ctx, pool, fixed.ScaleDown(data.AmountIn, shares.BPTDecimals)); err != nil {
				return err
			}
		}
		if bptOut {
			if err := p.shares.Mint(ctx, pool, fixed.ScaleDown(data.AmountOut, shares.BPTDecimals)); err != nil {
				return err
			}
		}
	}

	valueUSD, feesUSD := fixed.Zero, fixed.Zero
	if !bptIn && !bptOut {
		valueUSD, err = p.pricing.SwapValueInUSD(ctx, tokenIn, amountIn, tokenOut, amountOut)
		if err != nil {
			return err
		}
		if pool.PoolType.IsFX() {
			feesUSD, err = p.fxSwapFee(ctx, ptIn, amountIn, ptOut, amountOut)
			if err != nil {
				return err
			}
		} else {
			feesUSD = valueUSD.Mul(pool.SwapFee)
		}
	}

	vault, err := p.repo.Vault(ctx)
	if err != nil {
		return err
	}
	pool.SwapsCount++
	pool.TotalSwapVolume = pool.TotalSwapVolume.Add(valueUSD)
	pool.TotalSwapFee = pool.TotalSwapFee.Add(feesUSD)
	vault.TotalSwapCount++
	vault.TotalSwapVolume = vault.TotalSwapVolume.Add(valueUSD)
	vault.TotalSwapFee = vault.TotalSwapFee.Add(feesUSD)

	ptIn.Balance = ptIn.Balance.Add(amountIn)
	ptIn.CashBalance = ptIn.CashBalance.Add(amountIn)
	ptOut.Balance = ptOut.Balance.Sub(amountOut)
	ptOut.CashBalance = ptOut.CashBalance.Sub(amountOut)
	if err := p.repo.Save(ctx, ptIn, ptOut); err != nil {
		return err
	}

	if err := p.updateTokenTotals(ctx, tokenIn, amountIn, valueUSD, ts); err != nil {
		return err
	}
	if err := p.updateTokenTotals(ctx, tokenOut, amountOut.Neg(), valueUSD, ts); err != nil {
		return err
	}
	if err := p.updateTradePair(ctx, tokenIn, tokenOut, valueUSD, feesUSD, ts); err != nil {
		return err
	}
	if err := p.updateUser(ctx, ev.TxFrom, valueUSD, feesUSD, ts); err != nil {
		return err
	}

	swap := &model.Swap{
		ID:             ev.RecordID(),
		PoolID:         pool.ID,
		Caller:         ev.TxFrom,
		UserAddress:    ev.TxFrom,
		TokenIn:        tokenIn,
		TokenInSym:     ptIn.Symbol,
		TokenAmountIn:  amountIn,
		TokenOut:       tokenOut,
		TokenOutSym:    ptOut.Symbol,
		TokenAmountOut: amountOut,
		ValueUSD:       valueUSD,
		SwapFeesUSD:    feesUSD,
		Block:          ev.BlockNumber,
		Timestamp:      ts,
		Tx:             ev.TxHash,
	}
	if err := p.repo.Save(ctx, swap); err != nil {
		return err
	}

	if !bptIn && !bptOut {
		_, err := p.pricing.CapturePrices(ctx, pricing.SwapObservation{
			Pool:       pool,
			TokenIn:    tokenIn,
			TokenOut:   tokenOut,
			AmountIn:   amountIn,
			AmountOut:  amountOut,
			BalanceIn:  ptIn.Balance,
			BalanceOut: ptOut.Balance,
			WeightIn:   ptIn.Weight,
			WeightOut:  ptOut.Weight,
			ValueUSD:   valueUSD,
			Block:      ev.BlockNumber,
			Timestamp:  ts,
		})
		if err != nil {
			return err
		}
	}

	return p.finish(ctx, ev, pool, vault, pool.PoolType.IsComposableStable() && (bptIn || bptOut))
}

// updateTokenTotals records one swap leg. delta is positive for the leg entering the pool.
func (p *Processor) updateTokenTotals(ctx context.Context, address string, delta, valueUSD decimal.Decimal, ts int64) error {
	token, err := p.repo.Token(ctx, address)
	if err != nil {
		return err
	}
	token.TotalSwapCount++
	token.TotalVolumeNotional = token.TotalVolumeNotional.Add(delta.Abs())
	token.TotalVolumeUSD = token.TotalVolumeUSD.Add(valueUSD)
	token.TotalBalanceNotional = token.TotalBalanceNotional.Add(delta)
	if delta.IsNegative() {
		token.TotalBalanceUSD = token.TotalBalanceUSD.Sub(valueUSD)
	} else {
		token.TotalBalanceUSD = token.TotalBalanceUSD.Add(valueUSD)
	}
	if err := store.Save(ctx, p.repo.Store, token); err != nil {
		return err
	}
	return p.repo.UpdateTokenSnapshot(ctx, token, ts)
}

func (p *Processor) updateTradePair(ctx context.Context, tokenIn, tokenOut string, valueUSD, feesUSD decimal.Decimal, ts int64) error {
	pair, err := p.repo.TradePair(ctx, tokenIn, tokenOut)
	if err != nil {
		return err
	}
	pair.TotalSwapVolume = pair.TotalSwapVolume.Add(valueUSD)
	pair.TotalSwapFee = pair.TotalSwapFee.Add(feesUSD)
	if err := store.Save(ctx, p.repo.Store, pair); err != nil {
		return err
	}
	return p.repo.UpdateTradePairSnapshot(ctx, pair, ts)
}

func (p *Processor) updateUser(ctx context.Context, address string, valueUSD, feesUSD decimal.Decimal, ts int64) error {
	if address == "" {
		return nil
	}
	user, err := p.repo.User(ctx, address)
	if err != nil {
		return err
	}
	user.TotalSwapCount++
	user.TotalSwapVolume = user.TotalSwapVolume.Add(valueUSD)
	user.TotalSwapFee = user.TotalSwapFee.Add(feesUSD)
	if err := store.Save(ctx, p.repo.Store, user); err != nil {
		return err
	}
	return p.repo.UpdateUserSnapshot(ctx, user, ts)
}

// fxSwapFee is the spread between both legs valued at their oracle rates.
func (p *Processor) fxSwapFee(ctx context.Context, ptIn *model.PoolToken, amountIn decimal.Decimal, ptOut *model.PoolToken, amountOut decimal.Decimal) (decimal.Decimal, error) {
	in, err := p.fxValue(ctx, ptIn, amountIn)
	if err != nil {
		return fixed.Zero, err
	}
	out, err := p.fxValue(ctx, ptOut, amountOut)
	if err != nil {
		return fixed.Zero, err
	}
	return in.Sub(out).Abs(), nil
}

func (p *Processor) fxValue(ctx context.Context, pt *model.PoolToken, amount decimal.Decimal) (decimal.Decimal, error) {
	if pt.Oracle != "" {
		oracle, err := store.Load[model.FXOracle](ctx, p.repo.Store, pt.Oracle)
		if err != nil {
			return fixed.Zero, err
		}
		if oracle != nil && oracle.LatestRate.Valid {
			return amount.Mul(oracle.LatestRate.Decimal), nil
		}
	}
	return p.pricing.ValueInUSD(ctx, amount, pt.Address)
}
