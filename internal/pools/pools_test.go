package pools

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/contracts"
	"vaultScope/internal/entity"
	"vaultScope/internal/fixed"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/shares"
	"vaultScope/internal/store"
)

var (
	vaultAddr   = common.HexToAddress("0xba12222222228d8ba445958a75a0704d566bf2c8")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000fac01")
	poolAddr    = common.HexToAddress("0x00000000000000000000000000000000000000b9")
	tokenA      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB      = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	collector   = common.HexToAddress("0x00000000000000000000000000000000000fee01")
	holder      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	poolHash    = common.HexToHash("0x01")
)

type recordingWatcher struct {
	watched []common.Address
}

func (w *recordingWatcher) Watch(address common.Address, _ uint64) {
	w.watched = append(w.watched, address)
}

type harness struct {
	stub       *contracts.Stub
	repo       *entity.Repo
	ledger     *shares.Ledger
	lifecycle  *Lifecycle
	controller *Controller
	watcher    *recordingWatcher
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newHarness(t *testing.T, poolType model.PoolType, version int) *harness {
	t.Helper()
	fees := collector
	stub := &contracts.Stub{
		Tokens: map[common.Address]model.TokenMeta{
			tokenA:   {Decimals: 18, Symbol: "AAA", HasDecimals: true, HasSymbol: true},
			tokenB:   {Decimals: 6, Symbol: "BBB", HasDecimals: true, HasSymbol: true},
			poolAddr: {Decimals: 18, Symbol: "BPT", Name: "Pool Token", HasDecimals: true, HasSymbol: true, HasName: true},
		},
		PoolIDs:        map[common.Address]common.Hash{poolAddr: poolHash},
		SwapFees:       map[common.Address]*big.Int{poolAddr: big.NewInt(3e15)},
		PoolTokenLists: map[common.Hash][]common.Address{poolHash: {tokenA, tokenB}},
		FeesCollector:  &fees,
	}
	repo := entity.New(store.NewMemory(), stub, nil)
	registry, err := pricing.NewRegistry("local", []string{tokenA.Hex()}, []string{tokenA.Hex()})
	require.NoError(t, err)
	engine := pricing.NewEngine(repo, registry, pricing.DefaultThresholds(), nil)
	ledger := shares.NewLedger(repo, entity.Addr(vaultAddr))
	watcher := &recordingWatcher{}
	factories := []Factory{{Address: factoryAddr, Type: poolType, Version: version}}
	return &harness{
		stub:       stub,
		repo:       repo,
		ledger:     ledger,
		lifecycle:  NewLifecycle(repo, ledger, watcher, factories, nil),
		controller: NewController(repo, engine, ledger, nil),
		watcher:    watcher,
	}
}

func (h *harness) create(t *testing.T) *model.Pool {
	t.Helper()
	ev := &model.TypedEvent{BlockNumber: 50, TxHash: "0xc0de", LogIndex: 3, Address: entity.Addr(factoryAddr), EventName: model.EventPoolCreated, Timestamp: 86_400}
	require.NoError(t, h.lifecycle.HandlePoolCreated(context.Background(), ev, model.PoolCreatedData{Pool: poolAddr}))
	pool, err := h.repo.LoadPool(context.Background(), entity.PoolID(poolHash))
	require.NoError(t, err)
	require.NotNil(t, pool)
	return pool
}

func poolEvent(name string, logIndex uint64) *model.TypedEvent {
	return &model.TypedEvent{BlockNumber: 60, TxHash: "0xbeef", LogIndex: logIndex, Address: entity.Addr(poolAddr), EventName: name, Timestamp: 90_000}
}

func TestParseFactory(t *testing.T) {
	f, err := ParseFactory("composablestable:5:0x00000000000000000000000000000000000fac01")
	require.NoError(t, err)
	require.Equal(t, model.PoolTypeComposableStable, f.Type)
	require.Equal(t, 5, f.Version)
	require.Equal(t, factoryAddr, f.Address)

	for _, bad := range []string{"Weighted:1", "Nope:1:0x00000000000000000000000000000000000fac01", "Weighted:x:0x00000000000000000000000000000000000fac01", "Weighted:1:0x12"} {
		_, err := ParseFactory(bad)
		require.Error(t, err, bad)
	}
}

func TestCreateWeightedPool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeWeighted, 2)
	h.stub.Weights = map[common.Address][]*big.Int{poolAddr: {big.NewInt(8e17), big.NewInt(2e17)}}

	pool := h.create(t)
	require.Equal(t, model.PoolTypeWeighted, pool.PoolType)
	require.Equal(t, 2, pool.PoolTypeVersion)
	require.True(t, pool.SwapFee.Equal(dec("0.003")))
	require.Equal(t, "BPT", pool.Symbol)
	require.Equal(t, []string{entity.Addr(tokenA), entity.Addr(tokenB)}, pool.TokensList)
	require.True(t, fixed.OrZero(pool.TotalWeight).Equal(dec("1")))
	require.Equal(t, int64(86_400), pool.CreateTime)

	ptB, err := h.repo.LoadPoolToken(ctx, pool.ID, entity.Addr(tokenB))
	require.NoError(t, err)
	require.Equal(t, 1, ptB.Index)
	require.Equal(t, 6, ptB.Decimals)
	require.True(t, ptB.Weight.Decimal.Equal(dec("0.2")))

	contract, err := store.Load[model.PoolContract](ctx, h.repo.Store, entity.Addr(poolAddr))
	require.NoError(t, err)
	require.Equal(t, pool.ID, contract.Pool)
	require.Equal(t, []common.Address{poolAddr}, h.watcher.watched)

	vault, err := h.repo.Vault(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), vault.PoolCount)
	token, err := h.repo.LoadToken(ctx, entity.Addr(tokenA))
	require.NoError(t, err)
	require.Equal(t, int64(1), token.PoolCount)

	// A repeated creation event leaves the counts alone.
	h.create(t)
	vault, err = h.repo.Vault(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), vault.PoolCount)
}

func TestCreateByUnknownFactoryIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeWeighted, 1)
	ev := &model.TypedEvent{BlockNumber: 1, Address: "0x0000000000000000000000000000000000000bad", EventName: model.EventPoolCreated}
	require.NoError(t, h.lifecycle.HandlePoolCreated(ctx, ev, model.PoolCreatedData{Pool: poolAddr}))
	pool, err := h.repo.LoadPool(ctx, entity.PoolID(poolHash))
	require.NoError(t, err)
	require.Nil(t, pool)
	require.Empty(t, h.watcher.watched)
}

func TestLinearPremintNetsOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeAaveLinear, 1)
	h.stub.PoolTokenLists[poolHash] = []common.Address{tokenA, tokenB, poolAddr}
	h.stub.LinearIndexes = map[common.Address][2]int{poolAddr: {0, 1}}
	h.stub.Targets = map[common.Address][2]*big.Int{poolAddr: {e18(100), e18(1000)}}

	pool := h.create(t)
	require.Equal(t, 0, *pool.MainIndex)
	require.Equal(t, 1, *pool.WrappedIndex)
	require.True(t, pool.UpperTarget.Decimal.Equal(dec("1000")))

	// The constructor's mint of the full supply to the vault.
	premint := fixed.ScaleUp(shares.MaxBPT, 18)
	require.NoError(t, h.controller.HandleTransfer(ctx, poolEvent(model.EventTransfer, 1), model.TransferData{
		From: common.Address{}, To: vaultAddr, Value: premint,
	}))
	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.TotalShares.IsZero(), "shares %s", pool.TotalShares)
	require.Equal(t, int64(0), pool.HoldersCount)
}

func TestCreateGyroEPool(t *testing.T) {
	h := newHarness(t, model.PoolTypeGyroE, 2)
	one38 := new(big.Int).Exp(big.NewInt(10), big.NewInt(38), nil)
	h.stub.GyroE = map[common.Address]contracts.GyroEParams{poolAddr: {
		Alpha: big.NewInt(9e17), Beta: e18(1), C: big.NewInt(7e17), S: big.NewInt(7e17), Lambda: e18(2),
		TauAlphaX: one38, TauAlphaY: one38, TauBetaX: one38, TauBetaY: one38,
		U: one38, V: one38, W: one38, Z: one38, DSq: one38,
	}}

	pool := h.create(t)
	require.Equal(t, 2, pool.PoolTypeVersion)
	require.True(t, pool.Alpha.Decimal.Equal(dec("0.9")))
	require.True(t, pool.Lambda.Decimal.Equal(dec("2")))
	require.True(t, pool.DSq.Decimal.Equal(dec("1")))
}

func TestCreateFXPoolDiscoversOracles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeFX, 1)
	assimilator := common.HexToAddress("0x0000000000000000000000000000000000a55111")
	oracle := common.HexToAddress("0x00000000000000000000000000000000000041c1")
	aggregator := common.HexToAddress("0x0000000000000000000000000000000000a66001")
	h.stub.Assimilators = map[common.Address]map[common.Address]common.Address{poolAddr: {tokenB: assimilator}}
	h.stub.AssimilatorOracles = map[common.Address]common.Address{assimilator: oracle}
	h.stub.OracleAggregators = map[common.Address]common.Address{oracle: aggregator}
	h.stub.OracleDecimals = map[common.Address]uint8{aggregator: 8}

	id := poolHash
	ev := &model.TypedEvent{BlockNumber: 50, TxHash: "0xc0de", Address: entity.Addr(factoryAddr), EventName: model.EventPoolCreated}
	require.NoError(t, h.lifecycle.HandlePoolCreated(ctx, ev, model.PoolCreatedData{Pool: poolAddr, PoolID: &id}))

	pt, err := h.repo.LoadPoolToken(ctx, entity.PoolID(poolHash), entity.Addr(tokenB))
	require.NoError(t, err)
	require.Equal(t, entity.Addr(aggregator), pt.Oracle)
	require.ElementsMatch(t, []common.Address{aggregator, poolAddr}, h.watcher.watched)

	answer := &model.TypedEvent{BlockNumber: 70, Address: entity.Addr(aggregator), EventName: model.EventAnswerUpdated}
	require.NoError(t, h.controller.HandleAnswerUpdated(ctx, answer, model.AnswerUpdatedData{Current: big.NewInt(110_000_000)}))
	record, err := store.Load[model.FXOracle](ctx, h.repo.Store, entity.Addr(aggregator))
	require.NoError(t, err)
	require.Equal(t, []string{entity.Addr(tokenB)}, record.Tokens)
	require.True(t, record.LatestRate.Decimal.Equal(dec("1.1")))
}

func TestTransferToFeeCollectorAccruesProtocolFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeWeighted, 1)
	pool := h.create(t)

	require.NoError(t, h.controller.HandleTransfer(ctx, poolEvent(model.EventTransfer, 1), model.TransferData{
		From: common.Address{}, To: holder, Value: e18(100),
	}))
	require.NoError(t, h.controller.HandleTransfer(ctx, poolEvent(model.EventTransfer, 2), model.TransferData{
		From: common.Address{}, To: collector, Value: e18(2),
	}))
	require.NoError(t, h.controller.HandleTransfer(ctx, poolEvent(model.EventTransfer, 3), model.TransferData{
		From: holder, To: common.Address{}, Value: e18(100),
	}))

	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.TotalShares.Equal(dec("2")))
	require.True(t, fixed.OrZero(pool.TotalProtocolFeePaidInBPT).Equal(dec("2")))
	require.Equal(t, int64(1), pool.HoldersCount)

	vault, err := h.repo.Vault(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.Addr(collector), vault.ProtocolFeesCollector)
}

func TestTransferFromUnknownContractIsIgnored(t *testing.T) {
	h := newHarness(t, model.PoolTypeWeighted, 1)
	ev := poolEvent(model.EventTransfer, 1)
	ev.Address = "0x0000000000000000000000000000000000000bad"
	require.NoError(t, h.controller.HandleTransfer(context.Background(), ev, model.TransferData{To: holder, Value: e18(1)}))
}

func TestPauseAndSwapEnabledFlags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeWeighted, 1)
	pool := h.create(t)

	require.NoError(t, h.controller.HandlePausedStateChanged(ctx, poolEvent(model.EventPausedStateChanged, 1), model.PausedStateChangedData{Paused: true}))
	require.NoError(t, h.controller.HandleSwapEnabledSet(ctx, poolEvent(model.EventSwapEnabledSet, 2), model.SwapEnabledSetData{SwapEnabled: true}))
	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.False(t, pool.SwapEnabled)
	require.True(t, pool.SwapEnabledInternal)

	require.NoError(t, h.controller.HandlePausedStateChanged(ctx, poolEvent(model.EventPausedStateChanged, 3), model.PausedStateChangedData{Paused: false}))
	pool, err = h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.SwapEnabled)
}

func TestRecoveryModeFeeCaches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeComposableStable, 3)
	h.stub.FeeCaches = map[common.Address]map[int]*big.Int{poolAddr: {
		contracts.FeeTypeSwap: big.NewInt(5e17), contracts.FeeTypeYield: big.NewInt(1e17),
	}}
	pool := h.create(t)
	require.True(t, pool.ProtocolSwapFeeCache.Decimal.Equal(dec("0.5")))

	require.NoError(t, h.controller.HandleRecoveryModeStateChanged(ctx, poolEvent(model.EventRecoveryModeStateChanged, 1), model.RecoveryModeStateChangedData{Enabled: true}))
	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.IsInRecoveryMode)
	require.True(t, pool.ProtocolSwapFeeCache.Decimal.IsZero())

	require.NoError(t, h.controller.HandleRecoveryModeStateChanged(ctx, poolEvent(model.EventRecoveryModeStateChanged, 2), model.RecoveryModeStateChangedData{Enabled: false}))
	pool, err = h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.ProtocolYieldFeeCache.Decimal.Equal(dec("0.1")))

	require.NoError(t, h.controller.HandleProtocolFeePercentageCacheUpdated(ctx, poolEvent(model.EventProtocolFeePercentageCacheUpdated, 3),
		model.ProtocolFeePercentageCacheUpdatedData{FeeType: big.NewInt(2), Percentage: big.NewInt(2e17)}))
	pool, err = h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.ProtocolAumFeeCache.Decimal.Equal(dec("0.2")))
}

func TestAmpUpdates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeStable, 1)
	pool := h.create(t)

	ev := poolEvent(model.EventAmpUpdateStarted, 4)
	ev.Timestamp = 1500
	require.NoError(t, h.controller.HandleAmpUpdateStarted(ctx, ev, model.AmpUpdateStartedData{
		StartValue: big.NewInt(100_000), EndValue: big.NewInt(500_000), StartTime: big.NewInt(1000), EndTime: big.NewInt(2000),
	}))
	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, ev.RecordID(), pool.LatestAmpUpdate)
	require.Equal(t, int64(300), pool.Amp.Int64())

	stop := poolEvent(model.EventAmpUpdateStopped, 5)
	require.NoError(t, h.controller.HandleAmpUpdateStopped(ctx, stop, model.AmpUpdateStoppedData{CurrentValue: big.NewInt(420_000)}))
	pool, err = h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, int64(420), pool.Amp.Int64())
}

func TestSwapFeeUpdates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeWeighted, 1)
	pool := h.create(t)

	ev := poolEvent(model.EventGradualSwapFeeUpdateScheduled, 1)
	require.NoError(t, h.controller.HandleGradualSwapFeeUpdateScheduled(ctx, ev, model.GradualSwapFeeUpdateScheduledData{
		StartTime: big.NewInt(100), EndTime: big.NewInt(200), StartSwapFeePercentage: big.NewInt(1e16), EndSwapFeePercentage: big.NewInt(2e16),
	}))
	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.SwapFee.Equal(dec("0.01")))

	update, err := store.Load[model.SwapFeeUpdate](ctx, h.repo.Store, pool.LatestSwapFeeUpdate)
	require.NoError(t, err)
	require.True(t, update.EndSwapFeePercentage.Equal(dec("0.02")))
	require.Equal(t, int64(200), update.EndTimestamp)

	require.NoError(t, h.controller.HandleSwapFeePercentageChanged(ctx, poolEvent(model.EventSwapFeePercentageChanged, 2),
		model.SwapFeePercentageChangedData{SwapFeePercentage: big.NewInt(5e15)}))
	pool, err = h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.True(t, pool.SwapFee.Equal(dec("0.005")))
}

func TestRateProviderAndCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeComposableStable, 1)
	pool := h.create(t)
	provider := common.HexToAddress("0x0000000000000000000000000000000000001a7e")

	require.NoError(t, h.controller.HandleRateProviderSet(ctx, poolEvent(model.EventRateProviderSet, 1), model.RateProviderSetData{
		TokenIndex: big.NewInt(1), Provider: provider, CacheDuration: big.NewInt(3600),
	}))
	id := entity.PoolTokenID(pool.ID, entity.Addr(tokenB))
	rp, err := store.Load[model.PriceRateProvider](ctx, h.repo.Store, id)
	require.NoError(t, err)
	require.Equal(t, entity.Addr(provider), rp.Address)
	require.Equal(t, int64(90_000+3600), rp.CacheExpiry)
	require.True(t, rp.Rate.Decimal.Equal(fixed.One))

	token := tokenB
	require.NoError(t, h.controller.HandleRateCacheUpdated(ctx, poolEvent(model.EventRateCacheUpdated, 2), model.RateCacheUpdatedData{
		Token: &token, Rate: big.NewInt(105e16),
	}))
	pt, err := h.repo.LoadPoolToken(ctx, pool.ID, entity.Addr(tokenB))
	require.NoError(t, err)
	require.True(t, pt.PriceRate.Equal(dec("1.05")))
	require.True(t, pt.OldPriceRate.Decimal.Equal(fixed.One))
	rp, err = store.Load[model.PriceRateProvider](ctx, h.repo.Store, id)
	require.NoError(t, err)
	require.True(t, rp.Rate.Decimal.Equal(dec("1.05")))
}

func TestManagedTokenAddedAndRemoved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.PoolTypeManaged, 1)
	pool := h.create(t)
	tokenC := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	require.NoError(t, h.controller.HandleTokenAdded(ctx, poolEvent(model.EventTokenAdded, 1), model.TokenAddedData{
		Token: tokenC, NormalizedWeight: big.NewInt(1e17),
	}))
	pool, err := h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, pool.TokensList, 3)
	ptC, err := h.repo.LoadPoolToken(ctx, pool.ID, entity.Addr(tokenC))
	require.NoError(t, err)
	require.Equal(t, 2, ptC.Index)

	require.NoError(t, h.controller.HandleTokenRemoved(ctx, poolEvent(model.EventTokenRemoved, 2), model.TokenRemovedData{Token: tokenA}))
	pool, err = h.repo.LoadPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, []string{entity.Addr(tokenB), entity.Addr(tokenC)}, pool.TokensList)
	ptC, err = h.repo.LoadPoolToken(ctx, pool.ID, entity.Addr(tokenC))
	require.NoError(t, err)
	require.Equal(t, 1, ptC.Index)
	removed, err := h.repo.LoadPoolToken(ctx, pool.ID, entity.Addr(tokenA))
	require.NoError(t, err)
	require.Nil(t, removed)
	ta, err := h.repo.LoadToken(ctx, entity.Addr(tokenA))
	require.NoError(t, err)
	require.Equal(t, int64(0), ta.PoolCount)
}
