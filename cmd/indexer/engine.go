package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/contracts"
	"vaultScope/internal/entity"
	"vaultScope/internal/indexer"
	"vaultScope/internal/pools"
	"vaultScope/internal/pricing"
	"vaultScope/internal/rewards"
	"vaultScope/internal/shares"
	"vaultScope/internal/store"
	"vaultScope/internal/vault"
)

// engine is the fully wired event pipeline for one network. Handlers write
// through stage; store only sees whole batches.
type engine struct {
	store          store.Store
	stage          *store.Staged
	memory         *store.Memory
	snapshot       string
	checkpointName string
	watch          *indexer.WatchSet
	decoder        *contracts.EventDecoder
	dispatcher     *indexer.Dispatcher
}

func vaultAddress(cfg config.Config) common.Address {
	return common.HexToAddress(cfg.VaultAddress)
}

func buildEngine(ctx context.Context, cfg config.Config, reader contracts.Reader, logger *zap.Logger) (*engine, error) {
	if !common.IsHexAddress(cfg.VaultAddress) {
		return nil, fmt.Errorf("invalid vault address %q", cfg.VaultAddress)
	}
	vaultAddr := vaultAddress(cfg)

	registry, err := pricing.NewRegistry(cfg.Network, cfg.PricingAssets, cfg.StableAssets)
	if err != nil {
		return nil, err
	}

	factories := make([]pools.Factory, 0, len(cfg.Factories))
	for _, raw := range cfg.Factories {
		f, err := pools.ParseFactory(raw)
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}
	distributors, err := indexer.ParseAddresses(cfg.RewardDistributors)
	if err != nil {
		return nil, fmt.Errorf("reward distributors: %w", err)
	}

	decoder, err := contracts.NewEventDecoder()
	if err != nil {
		return nil, err
	}

	eng := &engine{decoder: decoder, snapshot: cfg.MemorySnapshot}
	if err := eng.openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	static := []common.Address{vaultAddr}
	for _, f := range factories {
		static = append(static, f.Address)
	}
	static = append(static, distributors...)
	eng.watch = indexer.NewWatchSet(static)
	restored, err := eng.watch.Restore(ctx, eng.store)
	if err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("restore watch set: %w", err)
	}

	repo := entity.New(eng.stage, reader, logger)
	pricer := pricing.NewEngine(repo, registry, pricing.Thresholds{
		MinPoolLiquidity: cfg.MinPoolLiquidityUSD,
		MinSwapValueUSD:  cfg.MinSwapValueUSD,
	}, logger)
	ledger := shares.NewLedger(repo, vaultAddr.Hex())
	blobs := rewards.NewGateway(cfg.IPFSGateway, cfg.IPFSTimeout, logger)

	eng.dispatcher = &indexer.Dispatcher{
		Vault:      vault.NewProcessor(repo, pricer, ledger, logger),
		Lifecycle:  pools.NewLifecycle(repo, ledger, eng.watch, factories, logger),
		Controller: pools.NewController(repo, pricer, ledger, logger),
		Rewards:    rewards.NewDistributor(eng.stage, blobs, logger),
		Logger:     logger,
	}

	logger.Info("engine ready",
		zap.String("network", cfg.Network),
		zap.String("vault", vaultAddr.Hex()),
		zap.Int("factories", len(factories)),
		zap.Int("reward_distributors", len(distributors)),
		zap.Int("restored_contracts", restored),
	)
	return eng, nil
}

func (e *engine) openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	e.checkpointName = "vault:" + cfg.Network
	switch cfg.StoreBackend {
	case "redis":
		rdb, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Network,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		e.store = rdb
	default:
		mem := store.NewMemory()
		if err := mem.LoadFile(cfg.MemorySnapshot); err != nil {
			return fmt.Errorf("load memory snapshot: %w", err)
		}
		e.store, e.memory = mem, mem
	}
	e.stage = store.NewStaged(e.store)
	return nil
}

// persist saves the memory store snapshot, if one is configured.
func (e *engine) persist() error {
	if e.memory == nil || e.snapshot == "" {
		return nil
	}
	if err := e.memory.SaveFile(e.snapshot); err != nil {
		return fmt.Errorf("save memory snapshot: %w", err)
	}
	return nil
}

func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// applier applies events through the stage so a failed event leaves nothing behind.
func (e *engine) applier() indexer.Applier {
	return indexer.StagedApplier{Next: e.dispatcher, Stage: e.stage}
}

// checkpointer stores progress in the entity store itself. Each checkpoint
// flushes the batch it closes, then saves the memory snapshot. A memory store
// without a snapshot starts empty on every run, so it never resumes.
func (e *engine) checkpointer() indexer.Checkpointer {
	return &indexer.StoreCheckpoint{Stage: e.stage, Name: e.checkpointName, Persist: e.persist}
}

// flush writes staged state outside of a checkpointed run.
func (e *engine) flush(ctx context.Context) error {
	if err := e.stage.Flush(ctx); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	return e.persist()
}
