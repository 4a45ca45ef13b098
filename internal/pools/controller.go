package pools

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
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

// Controller applies events emitted by pool contracts and FX price aggregators.
// Events from addresses without a PoolContract record are skipped.
type Controller struct {
	repo    *entity.Repo
	pricing *pricing.Engine
	shares  *shares.Ledger
	logger  *zap.Logger
}

func NewController(repo *entity.Repo, engine *pricing.Engine, ledger *shares.Ledger, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{repo: repo, pricing: engine, shares: ledger, logger: logger}
}

func (c *Controller) pool(ctx context.Context, ev *model.TypedEvent) (*model.Pool, error) {
	pool, err := c.repo.PoolByAddress(ctx, ev.Address)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		c.logger.Warn("event from unregistered pool",
			zap.String("event", ev.EventName),
			zap.String("address", ev.Address),
			zap.String("tx_hash", ev.TxHash),
			zap.Uint64("log_index", ev.LogIndex))
	}
	return pool, nil
}

func scale18(v *big.Int) decimal.Decimal { return fixed.ScaleDown(v, 18) }

// HandleTransfer keeps BPT holdings in sync. Mints to the protocol fee collector
// are protocol fees paid in BPT.
func (c *Controller) HandleTransfer(ctx context.Context, ev *model.TypedEvent, data model.TransferData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	amount := fixed.ScaleDown(data.Value, shares.BPTDecimals)
	mv, err := c.shares.Apply(ctx, pool, entity.Addr(data.From), entity.Addr(data.To), amount)
	if err != nil {
		return err
	}
	if !mv.Mint {
		return nil
	}

	vault, err := c.repo.Vault(ctx)
	if err != nil {
		return err
	}
	if vault.ProtocolFeesCollector == "" {
		if collector, ok := c.repo.Reader.ProtocolFeesCollector(ctx); ok {
			vault.ProtocolFeesCollector = entity.Addr(collector)
			if err := c.repo.Save(ctx, vault); err != nil {
				return err
			}
		}
	}
	if vault.ProtocolFeesCollector == "" || mv.To != vault.ProtocolFeesCollector {
		return nil
	}

	feeUSD, err := c.pricing.ValueInUSD(ctx, amount, pool.Address)
	if err != nil {
		return err
	}
	pool.TotalProtocolFeePaidInBPT = fixed.Some(fixed.OrZero(pool.TotalProtocolFeePaidInBPT).Add(amount))
	pool.TotalProtocolFee = fixed.Some(fixed.OrZero(pool.TotalProtocolFee).Add(feeUSD))
	vault.TotalProtocolFee = fixed.Some(fixed.OrZero(vault.TotalProtocolFee).Add(feeUSD))
	if err := c.repo.Save(ctx, pool, vault); err != nil {
		return err
	}
	if err := c.repo.UpdatePoolSnapshot(ctx, pool, ev.Time()); err != nil {
		return err
	}
	return c.repo.UpdateVaultSnapshot(ctx, vault, ev.Time())
}

func (c *Controller) HandleAmpUpdateStarted(ctx context.Context, ev *model.TypedEvent, data model.AmpUpdateStartedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	update := &model.AmpUpdate{
		ID:                 ev.RecordID(),
		PoolID:             pool.ID,
		ScheduledTimestamp: ev.Time(),
		StartTimestamp:     fixed.BigOrZero(data.StartTime).Int64(),
		EndTimestamp:       fixed.BigOrZero(data.EndTime).Int64(),
		StartAmp:           fixed.BigOrZero(data.StartValue),
		EndAmp:             fixed.BigOrZero(data.EndValue),
	}
	return c.applyAmpUpdate(ctx, ev, pool, update)
}

// HandleAmpUpdateStopped pins the amp at its value when the ramp was cancelled.
func (c *Controller) HandleAmpUpdateStopped(ctx context.Context, ev *model.TypedEvent, data model.AmpUpdateStoppedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	current := fixed.BigOrZero(data.CurrentValue)
	update := &model.AmpUpdate{
		ID:                 ev.RecordID(),
		PoolID:             pool.ID,
		ScheduledTimestamp: ev.Time(),
		StartTimestamp:     ev.Time(),
		EndTimestamp:       ev.Time(),
		StartAmp:           current,
		EndAmp:             current,
	}
	return c.applyAmpUpdate(ctx, ev, pool, update)
}

func (c *Controller) applyAmpUpdate(ctx context.Context, ev *model.TypedEvent, pool *model.Pool, update *model.AmpUpdate) error {
	if err := store.Save(ctx, c.repo.Store, update); err != nil {
		return err
	}
	pool.LatestAmpUpdate = update.ID
	return stable.UpdateAmpFactor(ctx, c.repo, pool, ev.Time())
}

func (c *Controller) HandleSwapFeePercentageChanged(ctx context.Context, ev *model.TypedEvent, data model.SwapFeePercentageChangedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	fee := scale18(data.SwapFeePercentage)
	return c.swapFeeUpdate(ctx, ev, pool, ev.Time(), ev.Time(), fee, fee)
}

func (c *Controller) HandleGradualSwapFeeUpdateScheduled(ctx context.Context, ev *model.TypedEvent, data model.GradualSwapFeeUpdateScheduledData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	return c.swapFeeUpdate(ctx, ev, pool,
		fixed.BigOrZero(data.StartTime).Int64(), fixed.BigOrZero(data.EndTime).Int64(),
		scale18(data.StartSwapFeePercentage), scale18(data.EndSwapFeePercentage))
}

func (c *Controller) swapFeeUpdate(ctx context.Context, ev *model.TypedEvent, pool *model.Pool, start, end int64, startFee, endFee decimal.Decimal) error {
	update := &model.SwapFeeUpdate{
		ID:                     ev.RecordID(),
		PoolID:                 pool.ID,
		ScheduledTimestamp:     ev.Time(),
		StartTimestamp:         start,
		EndTimestamp:           end,
		StartSwapFeePercentage: startFee,
		EndSwapFeePercentage:   endFee,
	}
	pool.SwapFee = startFee
	pool.LatestSwapFeeUpdate = update.ID
	return c.repo.Save(ctx, update, pool)
}

func (c *Controller) HandleGradualWeightUpdateScheduled(ctx context.Context, ev *model.TypedEvent, data model.GradualWeightUpdateScheduledData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	update := &model.GradualWeightUpdate{
		ID:                 ev.RecordID(),
		PoolID:             pool.ID,
		ScheduledTimestamp: ev.Time(),
		StartTimestamp:     fixed.BigOrZero(data.StartTime).Int64(),
		EndTimestamp:       fixed.BigOrZero(data.EndTime).Int64(),
		StartWeights:       scaleAll(data.StartWeights),
		EndWeights:         scaleAll(data.EndWeights),
	}
	pool.LatestWeightUpdate = update.ID
	return c.repo.Save(ctx, update, pool)
}

func scaleAll(values []*big.Int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = scale18(v)
	}
	return out
}

// rateToken resolves the token a rate event refers to, by address or by index
// into the pool's token list.
func rateToken(pool *model.Pool, token *common.Address, index *big.Int) (string, bool) {
	if token != nil {
		return entity.Addr(*token), true
	}
	if index == nil || !index.IsInt64() {
		return "", false
	}
	i := index.Int64()
	if i < 0 || i >= int64(len(pool.TokensList)) {
		return "", false
	}
	return pool.TokensList[i], true
}

func (c *Controller) HandleRateProviderSet(ctx context.Context, ev *model.TypedEvent, data model.RateProviderSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	token, ok := rateToken(pool, data.Token, data.TokenIndex)
	if !ok {
		c.logger.Warn("rate provider token unresolved", zap.String("pool_id", pool.ID), zap.String("tx_hash", ev.TxHash))
		return nil
	}
	id := entity.PoolTokenID(pool.ID, token)
	provider, err := store.GetOrCreate[model.PriceRateProvider](ctx, c.repo.Store, id, func() *model.PriceRateProvider {
		return &model.PriceRateProvider{ID: id, PoolID: pool.ID, Token: token, Rate: fixed.Some(fixed.One)}
	})
	if err != nil {
		return err
	}
	duration := fixed.BigOrZero(data.CacheDuration).Int64()
	provider.Address = entity.Addr(data.Provider)
	provider.CacheDuration = duration
	provider.LastCached = ev.Time()
	provider.CacheExpiry = ev.Time() + duration
	return store.Save(ctx, c.repo.Store, provider)
}

func (c *Controller) HandleRateCacheUpdated(ctx context.Context, ev *model.TypedEvent, data model.RateCacheUpdatedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	token, ok := rateToken(pool, data.Token, data.TokenIndex)
	if !ok {
		c.logger.Warn("rate cache token unresolved", zap.String("pool_id", pool.ID), zap.String("tx_hash", ev.TxHash))
		return nil
	}
	rate := scale18(data.Rate)

	id := entity.PoolTokenID(pool.ID, token)
	provider, err := store.Load[model.PriceRateProvider](ctx, c.repo.Store, id)
	if err != nil {
		return err
	}
	if provider != nil {
		provider.Rate = fixed.Some(rate)
		provider.LastCached = ev.Time()
		provider.CacheExpiry = ev.Time() + provider.CacheDuration
		if err := store.Save(ctx, c.repo.Store, provider); err != nil {
			return err
		}
	}

	pt, err := c.repo.LoadPoolToken(ctx, pool.ID, token)
	if err != nil || pt == nil {
		return err
	}
	pt.OldPriceRate = fixed.Some(pt.PriceRate)
	pt.PriceRate = rate
	return c.repo.Save(ctx, pt)
}

func (c *Controller) HandleTargetsSet(ctx context.Context, ev *model.TypedEvent, data model.TargetsSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.LowerTarget = fixed.Some(scale18(data.LowerTarget))
	pool.UpperTarget = fixed.Some(scale18(data.UpperTarget))
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleSwapEnabledSet(ctx context.Context, ev *model.TypedEvent, data model.SwapEnabledSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.SwapEnabledInternal = data.SwapEnabled
	pool.SwapEnabled = data.SwapEnabled && !pool.IsPaused
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandlePausedStateChanged(ctx context.Context, ev *model.TypedEvent, data model.PausedStateChangedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.IsPaused = data.Paused
	pool.SwapEnabled = !data.Paused && pool.SwapEnabledInternal
	return c.repo.Save(ctx, pool)
}

// HandleRecoveryModeStateChanged zeroes the protocol fee caches while in recovery
// mode and reloads them on exit.
func (c *Controller) HandleRecoveryModeStateChanged(ctx context.Context, ev *model.TypedEvent, data model.RecoveryModeStateChangedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.IsInRecoveryMode = data.Enabled
	if data.Enabled {
		pool.ProtocolSwapFeeCache = fixed.Some(fixed.Zero)
		pool.ProtocolYieldFeeCache = fixed.Some(fixed.Zero)
		pool.ProtocolAumFeeCache = fixed.Some(fixed.Zero)
	} else {
		readFeeCaches(ctx, c.repo.Reader, pool)
	}
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleProtocolFeePercentageCacheUpdated(ctx context.Context, ev *model.TypedEvent, data model.ProtocolFeePercentageCacheUpdatedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pct := fixed.Some(scale18(data.Percentage))
	switch fixed.BigOrZero(data.FeeType).Int64() {
	case 0:
		pool.ProtocolSwapFeeCache = pct
	case 1:
		pool.ProtocolYieldFeeCache = pct
	case 2:
		pool.ProtocolAumFeeCache = pct
	default:
		c.logger.Warn("unknown protocol fee type", zap.String("pool_id", pool.ID), zap.String("fee_type", data.FeeType.String()))
		return nil
	}
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleMustAllowlistLPsSet(ctx context.Context, ev *model.TypedEvent, data model.MustAllowlistLPsSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.MustAllowlistLPs = data.MustAllowlistLPs
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleJoinExitEnabledSet(ctx context.Context, ev *model.TypedEvent, data model.JoinExitEnabledSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.JoinExitEnabled = data.Enabled
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleManagementAumFeeCollected(ctx context.Context, ev *model.TypedEvent, data model.ManagementAumFeeCollectedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.TotalAumFeeCollectedInBPT = fixed.Some(fixed.OrZero(pool.TotalAumFeeCollectedInBPT).Add(scale18(data.BptAmount)))
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleManagementAumFeePercentageChanged(ctx context.Context, ev *model.TypedEvent, data model.ManagementAumFeePercentageChangedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.ManagementAumFee = fixed.Some(scale18(data.Percentage))
	return c.repo.Save(ctx, pool)
}

func (c *Controller) HandleCircuitBreakerSet(ctx context.Context, ev *model.TypedEvent, data model.CircuitBreakerSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	token := entity.Addr(data.Token)
	breaker := &model.CircuitBreaker{
		ID:                   entity.PoolTokenID(pool.ID, token),
		PoolID:               pool.ID,
		Token:                token,
		BptPrice:             scale18(data.BptPrice),
		LowerBoundPercentage: scale18(data.LowerBoundPercentage),
		UpperBoundPercentage: scale18(data.UpperBoundPercentage),
	}
	if err := store.Save(ctx, c.repo.Store, breaker); err != nil {
		return err
	}
	pt, err := c.repo.LoadPoolToken(ctx, pool.ID, token)
	if err != nil || pt == nil {
		return err
	}
	pt.CircuitBreaker = breaker.ID
	return c.repo.Save(ctx, pt)
}

// HandleTokenAdded appends a token to a managed pool.
func (c *Controller) HandleTokenAdded(ctx context.Context, ev *model.TypedEvent, data model.TokenAddedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	token := entity.Addr(data.Token)
	existing, err := c.repo.LoadPoolToken(ctx, pool.ID, token)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	pt, err := c.repo.CreatePoolToken(ctx, pool, token, len(pool.TokensList), "")
	if err != nil {
		return err
	}
	if data.NormalizedWeight != nil {
		pt.Weight = fixed.Some(scale18(data.NormalizedWeight))
	}
	pool.TokensList = append(pool.TokensList, token)

	t, err := c.repo.Token(ctx, token)
	if err != nil {
		return err
	}
	t.PoolCount++
	return c.repo.Save(ctx, pt, t, pool)
}

// HandleTokenRemoved drops a token from a managed pool and reindexes the rest.
func (c *Controller) HandleTokenRemoved(ctx context.Context, ev *model.TypedEvent, data model.TokenRemovedData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	token := entity.Addr(data.Token)
	kept := make([]string, 0, len(pool.TokensList))
	for _, t := range pool.TokensList {
		if t != token {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(pool.TokensList) {
		return nil
	}
	pool.TokensList = kept

	if err := store.Remove(ctx, c.repo.Store, model.KindPoolToken, entity.PoolTokenID(pool.ID, token)); err != nil {
		return err
	}
	tokens, err := c.repo.PoolTokens(ctx, pool)
	if err != nil {
		return err
	}
	changed := make([]model.Entity, 0, len(tokens)+2)
	for i, pt := range tokens {
		pt.Index = i
		changed = append(changed, pt)
	}
	t, err := c.repo.Token(ctx, token)
	if err != nil {
		return err
	}
	if t.PoolCount > 0 {
		t.PoolCount--
	}
	changed = append(changed, t, pool)
	return c.repo.Save(ctx, changed...)
}

// HandleFXParametersSet records an FX pool's curve parameters.
func (c *Controller) HandleFXParametersSet(ctx context.Context, ev *model.TypedEvent, data model.FXParametersSetData) error {
	pool, err := c.pool(ctx, ev)
	if err != nil || pool == nil {
		return err
	}
	pool.Alpha = fixed.Some(scale18(data.Alpha))
	pool.Beta = fixed.Some(scale18(data.Beta))
	pool.Delta = fixed.Some(scale18(data.Delta))
	pool.Epsilon = fixed.Some(scale18(data.Epsilon))
	pool.Lambda = fixed.Some(scale18(data.Lambda))
	return c.repo.Save(ctx, pool)
}

// HandleAnswerUpdated caches an FX aggregator's latest answer in its own decimals.
func (c *Controller) HandleAnswerUpdated(ctx context.Context, ev *model.TypedEvent, data model.AnswerUpdatedData) error {
	oracle, err := store.Load[model.FXOracle](ctx, c.repo.Store, entity.Addr(common.HexToAddress(ev.Address)))
	if err != nil {
		return err
	}
	if oracle == nil {
		c.logger.Warn("answer from unknown aggregator", zap.String("address", ev.Address), zap.String("tx_hash", ev.TxHash))
		return nil
	}
	oracle.LatestRate = fixed.Some(fixed.ScaleDown(data.Current, oracle.Decimals))
	return store.Save(ctx, c.repo.Store, oracle)
}
