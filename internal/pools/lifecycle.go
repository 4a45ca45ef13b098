// Package pools creates pools from factory events and applies the events emitted
// by pool contracts themselves.
package pools

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/contracts"
	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/shares"
	"vaultScope/internal/stable"
	"vaultScope/internal/store"
	"vaultScope/internal/weighted"
)

// Watcher starts delivering a contract's logs from the given block on.
type Watcher interface {
	Watch(address common.Address, fromBlock uint64)
}

// Factory describes one pool factory deployment.
type Factory struct {
	Address common.Address
	Type    model.PoolType
	Version int
}

// ParseFactory parses a "type:version:address" entry.
func ParseFactory(s string) (Factory, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Factory{}, fmt.Errorf("factory %q: want type:version:address", s)
	}
	poolType, err := model.ParsePoolType(parts[0])
	if err != nil {
		return Factory{}, fmt.Errorf("factory %q: %w", s, err)
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil || version < 1 {
		return Factory{}, fmt.Errorf("factory %q: invalid version", s)
	}
	if !common.IsHexAddress(parts[2]) {
		return Factory{}, fmt.Errorf("factory %q: invalid address", s)
	}
	return Factory{Address: common.HexToAddress(parts[2]), Type: poolType, Version: version}, nil
}

// Lifecycle handles pool creation.
type Lifecycle struct {
	repo      *entity.Repo
	shares    *shares.Ledger
	watcher   Watcher
	factories map[common.Address]Factory
	logger    *zap.Logger
}

func NewLifecycle(repo *entity.Repo, ledger *shares.Ledger, watcher Watcher, factories []Factory, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	byAddress := make(map[common.Address]Factory, len(factories))
	for _, f := range factories {
		byAddress[f.Address] = f
	}
	return &Lifecycle{repo: repo, shares: ledger, watcher: watcher, factories: byAddress, logger: logger}
}

// Factories returns the configured factory addresses.
func (l *Lifecycle) Factories() []common.Address {
	out := make([]common.Address, 0, len(l.factories))
	for addr := range l.factories {
		out = append(out, addr)
	}
	return out
}

// HandlePoolCreated registers a pool announced by a factory. Reads that revert
// leave their fields at the creation defaults.
func (l *Lifecycle) HandlePoolCreated(ctx context.Context, ev *model.TypedEvent, data model.PoolCreatedData) error {
	factory, ok := l.factories[common.HexToAddress(ev.Address)]
	if !ok {
		l.logger.Warn("pool created by unknown factory",
			zap.String("factory", ev.Address), zap.String("tx_hash", ev.TxHash), zap.Uint64("log_index", ev.LogIndex))
		return nil
	}
	reader := l.repo.Reader
	poolAddress := data.Pool

	var poolID common.Hash
	if data.PoolID != nil {
		poolID = *data.PoolID
	} else if id, ok := reader.PoolID(ctx, poolAddress); ok {
		poolID = id
	} else {
		l.logger.Warn("pool id unavailable",
			zap.String("pool", entity.Addr(poolAddress)), zap.String("tx_hash", ev.TxHash))
		return nil
	}

	existing, err := l.repo.LoadPool(ctx, entity.PoolID(poolID))
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	pool := entity.NewPool(entity.PoolID(poolID), entity.Addr(poolAddress), factory.Type, factory.Version)
	pool.Factory = entity.Addr(factory.Address)
	pool.CreateTime = ev.Time()
	pool.CreateBlock = ev.BlockNumber
	if fee, ok := reader.SwapFeePercentage(ctx, poolAddress); ok {
		pool.SwapFee = fixed.ScaleDown(fee, 18)
	}
	if owner, ok := reader.Owner(ctx, poolAddress); ok {
		pool.Owner = entity.Addr(owner)
	}
	meta := reader.TokenMeta(ctx, poolAddress)
	pool.Name, pool.Symbol = meta.Name, meta.Symbol

	l.typeParameters(ctx, pool)

	tokens, _, ok := reader.PoolTokens(ctx, poolID)
	if !ok {
		l.logger.Warn("pool tokens unavailable", zap.String("pool_id", pool.ID))
	}
	for _, token := range tokens {
		pool.TokensList = append(pool.TokensList, entity.Addr(token))
	}
	if err := l.repo.Save(ctx, pool); err != nil {
		return err
	}
	if err := l.createPoolTokens(ctx, pool, poolID, tokens); err != nil {
		return err
	}

	if err := l.initialize(ctx, pool, tokens); err != nil {
		return err
	}
	return l.register(ctx, pool, ev)
}

// typeParameters reads the curve parameters fixed at construction.
func (l *Lifecycle) typeParameters(ctx context.Context, pool *model.Pool) {
	reader := l.repo.Reader
	address := common.HexToAddress(pool.Address)
	switch {
	case pool.PoolType.IsLinear():
		if main, wrapped, ok := reader.LinearIndices(ctx, address); ok {
			pool.MainIndex, pool.WrappedIndex = &main, &wrapped
		}
		if lower, upper, ok := reader.LinearTargets(ctx, address); ok {
			pool.LowerTarget = fixed.Some(fixed.ScaleDown(lower, 18))
			pool.UpperTarget = fixed.Some(fixed.ScaleDown(upper, 18))
		}
	case pool.PoolType == model.PoolTypeGyro2:
		if sqrtAlpha, sqrtBeta, ok := reader.Gyro2SqrtParameters(ctx, address); ok {
			pool.SqrtAlpha = fixed.Some(fixed.ScaleDown(sqrtAlpha, 18))
			pool.SqrtBeta = fixed.Some(fixed.ScaleDown(sqrtBeta, 18))
		}
	case pool.PoolType == model.PoolTypeGyro3:
		if root3Alpha, ok := reader.Gyro3Root3Alpha(ctx, address); ok {
			pool.Root3Alpha = fixed.Some(fixed.ScaleDown(root3Alpha, 18))
		}
	case pool.PoolType == model.PoolTypeGyroE:
		if p, ok := reader.GyroEParams(ctx, address); ok {
			pool.Alpha = optional(p.Alpha, 18)
			pool.Beta = optional(p.Beta, 18)
			pool.C = optional(p.C, 18)
			pool.S = optional(p.S, 18)
			pool.Lambda = optional(p.Lambda, 18)
			pool.TauAlphaX = optional(p.TauAlphaX, 38)
			pool.TauAlphaY = optional(p.TauAlphaY, 38)
			pool.TauBetaX = optional(p.TauBetaX, 38)
			pool.TauBetaY = optional(p.TauBetaY, 38)
			pool.U = optional(p.U, 38)
			pool.V = optional(p.V, 38)
			pool.W = optional(p.W, 38)
			pool.Z = optional(p.Z, 38)
			pool.DSq = optional(p.DSq, 38)
		}
	}
	if pool.PoolType.IsComposableStable() || pool.PoolType.IsManaged() {
		readFeeCaches(ctx, l.repo.Reader, pool)
	}
}

func readFeeCaches(ctx context.Context, reader contracts.Reader, pool *model.Pool) {
	address := common.HexToAddress(pool.Address)
	if v, ok := reader.ProtocolFeePercentageCache(ctx, address, contracts.FeeTypeSwap); ok {
		pool.ProtocolSwapFeeCache = fixed.Some(fixed.ScaleDown(v, 18))
	}
	if v, ok := reader.ProtocolFeePercentageCache(ctx, address, contracts.FeeTypeYield); ok {
		pool.ProtocolYieldFeeCache = fixed.Some(fixed.ScaleDown(v, 18))
	}
	if v, ok := reader.ProtocolFeePercentageCache(ctx, address, contracts.FeeTypeAum); ok {
		pool.ProtocolAumFeeCache = fixed.Some(fixed.ScaleDown(v, 18))
	}
}

func (l *Lifecycle) createPoolTokens(ctx context.Context, pool *model.Pool, poolID common.Hash, tokens []common.Address) error {
	for i, token := range tokens {
		manager := ""
		if am, ok := l.repo.Reader.AssetManager(ctx, poolID, token); ok {
			manager = entity.Addr(am)
		}
		if _, err := l.repo.CreatePoolToken(ctx, pool, entity.Addr(token), i, manager); err != nil {
			return err
		}
		t, err := l.repo.Token(ctx, entity.Addr(token))
		if err != nil {
			return err
		}
		t.PoolCount++
		if err := store.Save(ctx, l.repo.Store, t); err != nil {
			return err
		}
	}
	return nil
}

// initialize applies the per-type state that depends on the pool's tokens.
func (l *Lifecycle) initialize(ctx context.Context, pool *model.Pool, tokens []common.Address) error {
	switch {
	case pool.PoolType.IsWeighted():
		if _, err := weighted.UpdatePoolWeights(ctx, l.repo, pool); err != nil {
			return err
		}
	case pool.PoolType.IsStableLike():
		if err := stable.UpdateAmpFactor(ctx, l.repo, pool, pool.CreateTime); err != nil {
			return err
		}
	case pool.PoolType.IsLinear():
		// The full supply is minted to the vault at construction.
		if err := l.shares.CorrectPremint(ctx, pool, shares.MaxBPT); err != nil {
			return err
		}
	case pool.PoolType.IsFX():
		for _, token := range tokens {
			if err := l.discoverOracle(ctx, pool, token); err != nil {
				return err
			}
		}
	}
	return nil
}

// discoverOracle follows assimilator, oracle and aggregator for an FX pool token
// and starts watching the aggregator's price updates.
func (l *Lifecycle) discoverOracle(ctx context.Context, pool *model.Pool, token common.Address) error {
	reader := l.repo.Reader
	assimilator, ok := reader.FXAssimilator(ctx, common.HexToAddress(pool.Address), token)
	if !ok {
		return nil
	}
	oracle, ok := reader.FXOracle(ctx, assimilator)
	if !ok {
		return nil
	}
	aggregator, ok := reader.FXAggregator(ctx, oracle)
	if !ok {
		l.logger.Debug("fx aggregator unavailable", zap.String("pool_id", pool.ID), zap.String("token", entity.Addr(token)))
		return nil
	}
	decimals, ok := reader.FXOracleDecimals(ctx, aggregator)
	if !ok {
		decimals = 8
	}

	id := entity.Addr(aggregator)
	record, err := store.GetOrCreate[model.FXOracle](ctx, l.repo.Store, id, func() *model.FXOracle {
		return &model.FXOracle{ID: id, Decimals: int(decimals), Tokens: []string{}}
	})
	if err != nil {
		return err
	}
	tokenID := entity.Addr(token)
	if !slices.Contains(record.Tokens, tokenID) {
		record.Tokens = append(record.Tokens, tokenID)
	}

	pt, err := l.repo.LoadPoolToken(ctx, pool.ID, tokenID)
	if err != nil {
		return err
	}
	if pt != nil {
		pt.Oracle = id
		if err := l.repo.Save(ctx, pt); err != nil {
			return err
		}
	}
	if l.watcher != nil {
		l.watcher.Watch(aggregator, pool.CreateBlock)
	}
	return store.Save(ctx, l.repo.Store, record)
}

// register records the pool contract, starts watching it and bumps the vault count.
func (l *Lifecycle) register(ctx context.Context, pool *model.Pool, ev *model.TypedEvent) error {
	if err := store.Save(ctx, l.repo.Store, &model.PoolContract{ID: pool.Address, Pool: pool.ID}); err != nil {
		return err
	}
	if l.watcher != nil {
		l.watcher.Watch(common.HexToAddress(pool.Address), ev.BlockNumber)
	}
	vault, err := l.repo.Vault(ctx)
	if err != nil {
		return err
	}
	vault.PoolCount++
	if err := l.repo.Save(ctx, vault); err != nil {
		return err
	}
	if err := l.repo.UpdateVaultSnapshot(ctx, vault, ev.Time()); err != nil {
		return err
	}
	l.logger.Info("pool registered",
		zap.String("pool_id", pool.ID),
		zap.String("type", string(pool.PoolType)),
		zap.Int("tokens", len(pool.TokensList)),
		zap.Uint64("block", ev.BlockNumber))
	return nil
}

func optional(v *big.Int, decimals int) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return fixed.Some(fixed.ScaleDown(v, decimals))
}
