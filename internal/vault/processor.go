// Package vault applies the vault's join/exit, swap and asset-management events.
package vault

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/shares"
	"vaultScope/internal/stable"
	"vaultScope/internal/store"
)

// ErrMissingPoolToken is entity.ErrMissingPoolToken, re-exported for callers
// that only deal with vault events.
var ErrMissingPoolToken = entity.ErrMissingPoolToken

// Processor handles vault events. It is not safe for concurrent use.
type Processor struct {
	repo    *entity.Repo
	pricing *pricing.Engine
	shares  *shares.Ledger
	logger  *zap.Logger
}

func NewProcessor(repo *entity.Repo, engine *pricing.Engine, ledger *shares.Ledger, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{repo: repo, pricing: engine, shares: ledger, logger: logger}
}

func (p *Processor) loadPool(ctx context.Context, ev *model.TypedEvent, poolID string) (*model.Pool, error) {
	pool, err := p.repo.LoadPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		p.logger.Warn("pool not found",
			zap.String("event", ev.EventName),
			zap.String("pool_id", poolID),
			zap.String("tx_hash", ev.TxHash),
			zap.Uint64("log_index", ev.LogIndex))
	}
	return pool, nil
}

func (p *Processor) poolToken(ctx context.Context, pool *model.Pool, token string) (*model.PoolToken, error) {
	pt, err := p.repo.LoadPoolToken(ctx, pool.ID, token)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPoolToken, entity.PoolTokenID(pool.ID, token))
	}
	return pt, nil
}

// HandleBalanceChange applies a PoolBalanceChanged event. A positive delta sum is
// a join; anything else, a net-zero change included, is an exit.
func (p *Processor) HandleBalanceChange(ctx context.Context, ev *model.TypedEvent, data model.PoolBalanceChangedData) error {
	if len(data.Deltas) == 0 {
		return nil
	}
	total := new(big.Int)
	for _, d := range data.Deltas {
		total.Add(total, fixed.BigOrZero(d))
	}
	kind := model.ExitType
	if total.Sign() > 0 {
		kind = model.JoinType
	}

	pool, err := p.loadPool(ctx, ev, entity.PoolID(data.PoolID))
	if err != nil || pool == nil {
		return err
	}
	vault, err := p.repo.Vault(ctx)
	if err != nil {
		return err
	}
	ts := ev.Time()

	amounts := make([]decimal.Decimal, len(pool.TokensList))
	for i := range amounts {
		amounts[i] = fixed.Zero
	}
	valueUSD := fixed.Zero
	protocolFeeUSD := fixed.Zero
	var bptDelta *big.Int

	// Every listed token must resolve before anything is written.
	pts := make([]*model.PoolToken, len(data.Tokens))
	for i, tokenAddr := range data.Tokens {
		pt, err := p.poolToken(ctx, pool, entity.Addr(tokenAddr))
		if err != nil {
			return err
		}
		pts[i] = pt
	}

	for i, tokenAddr := range data.Tokens {
		token := entity.Addr(tokenAddr)
		delta := fixed.BigOrZero(bigAt(data.Deltas, i))
		fee := fixed.BigOrZero(bigAt(data.ProtocolFeeAmounts, i))

		pt := pts[i]
		if token == pool.Address {
			bptDelta = delta
		}

		change := fixed.TokenToDecimal(new(big.Int).Sub(delta, fee), pt.Decimals)
		pt.Balance = pt.Balance.Add(change)
		pt.CashBalance = pt.CashBalance.Add(change)

		if fee.Sign() != 0 {
			feeAmount := fixed.TokenToDecimal(fee, pt.Decimals)
			pt.PaidProtocolFees = fixed.Some(fixed.OrZero(pt.PaidProtocolFees).Add(feeAmount))
			feeUSD, err := p.pricing.ValueInUSD(ctx, feeAmount, token)
			if err != nil {
				return err
			}
			protocolFeeUSD = protocolFeeUSD.Add(feeUSD)
		}

		amount := fixed.TokenToDecimal(delta, pt.Decimals)
		if kind == model.ExitType {
			amount = amount.Neg()
		}
		if pt.Index >= 0 && pt.Index < len(amounts) {
			amounts[pt.Index] = amount
		}

		if token != pool.Address {
			usd, err := p.pricing.ValueInUSD(ctx, amount, token)
			if err != nil {
				return err
			}
			valueUSD = valueUSD.Add(usd)
		}

		t, err := p.repo.Token(ctx, token)
		if err != nil {
			return err
		}
		changeUSD, err := p.pricing.ValueInUSD(ctx, change, token)
		if err != nil {
			return err
		}
		t.TotalBalanceNotional = t.TotalBalanceNotional.Add(change)
		t.TotalBalanceUSD = t.TotalBalanceUSD.Add(changeUSD)
		if err := p.repo.Save(ctx, pt, t); err != nil {
			return err
		}
		if err := p.repo.UpdateTokenSnapshot(ctx, t, ts); err != nil {
			return err
		}
	}

	if protocolFeeUSD.IsPositive() {
		pool.TotalProtocolFee = fixed.Some(fixed.OrZero(pool.TotalProtocolFee).Add(protocolFeeUSD))
		vault.TotalProtocolFee = fixed.Some(fixed.OrZero(vault.TotalProtocolFee).Add(protocolFeeUSD))
	}

	record := &model.JoinExit{
		ID:        ev.RecordID(),
		Type:      kind,
		Sender:    entity.Addr(data.LiquidityProvider),
		Amounts:   amounts,
		ValueUSD:  valueUSD,
		Pool:      pool.ID,
		User:      entity.Addr(data.LiquidityProvider),
		Block:     ev.BlockNumber,
		Timestamp: ts,
		Tx:        ev.TxHash,
	}
	if err := p.repo.Save(ctx, record); err != nil {
		return err
	}

	if pool.PoolType.PremintsOnJoin() && bptDelta != nil && pool.TotalShares.Equal(shares.MaxBPT) {
		if err := p.shares.CorrectPremint(ctx, pool, fixed.ScaleDown(bptDelta, shares.BPTDecimals)); err != nil {
			return err
		}
	}

	return p.finish(ctx, ev, pool, vault, pool.PoolType.IsComposableStable())
}

// finish revalues the pool, refreshes invariant bookkeeping and snapshots, and
// persists pool and vault.
func (p *Processor) finish(ctx context.Context, ev *model.TypedEvent, pool *model.Pool, vault *model.Balancer, invariant bool) error {
	ts := ev.Time()
	if _, err := p.pricing.UpdatePoolLiquidity(ctx, pool, vault, ev.BlockNumber, ts); err != nil {
		return err
	}
	if invariant {
		if err := stable.UpdateJoinExitInvariant(ctx, p.repo, pool, ev.RecordID(), ts); err != nil {
			return err
		}
	}
	if err := p.repo.Save(ctx, pool, vault); err != nil {
		return err
	}
	if err := p.repo.UpdatePoolSnapshot(ctx, pool, ts); err != nil {
		return err
	}
	return p.repo.UpdateVaultSnapshot(ctx, vault, ts)
}

// HandleBalanceManaged applies an asset manager's cash/managed movement.
func (p *Processor) HandleBalanceManaged(ctx context.Context, ev *model.TypedEvent, data model.PoolBalanceManagedData) error {
	pool, err := p.loadPool(ctx, ev, entity.PoolID(data.PoolID))
	if err != nil || pool == nil {
		return err
	}
	pt, err := p.poolToken(ctx, pool, entity.Addr(data.Token))
	if err != nil {
		return err
	}

	cashDelta := fixed.BigOrZero(data.CashDelta)
	cash := fixed.TokenToDecimal(cashDelta, pt.Decimals)
	managed := fixed.TokenToDecimal(fixed.BigOrZero(data.ManagedDelta), pt.Decimals)

	pt.CashBalance = pt.CashBalance.Add(cash)
	pt.ManagedBalance = pt.ManagedBalance.Add(managed)
	pt.Balance = pt.Balance.Add(cash).Add(managed)
	pt.Invested = pt.Invested.Add(managed)

	op := model.OperationUpdate
	switch cashDelta.Sign() {
	case -1:
		op = model.OperationDeposit
	case 1:
		op = model.OperationWithdraw
	}
	record := &model.ManagementOperation{
		ID:           ev.RecordID(),
		Type:         op,
		CashDelta:    cash,
		ManagedDelta: managed,
		PoolTokenID:  pt.ID,
		Timestamp:    ev.Time(),
	}
	return p.repo.Save(ctx, pt, record)
}

// HandleInternalBalanceChange tracks a user's vault internal balance.
func (p *Processor) HandleInternalBalanceChange(ctx context.Context, ev *model.TypedEvent, data model.InternalBalanceChangedData) error {
	user := entity.Addr(data.User)
	if _, err := p.repo.User(ctx, user); err != nil {
		return err
	}
	token, err := p.repo.Token(ctx, entity.Addr(data.Token))
	if err != nil {
		return err
	}
	balance, err := p.repo.InternalBalance(ctx, user, token.ID)
	if err != nil {
		return err
	}
	balance.Balance = balance.Balance.Add(fixed.TokenToDecimal(fixed.BigOrZero(data.Delta), token.Decimals))
	return store.Save(ctx, p.repo.Store, balance)
}

func bigAt(values []*big.Int, i int) *big.Int {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func isBPT(pool *model.Pool, token string) bool {
	return strings.EqualFold(pool.Address, token)
}
