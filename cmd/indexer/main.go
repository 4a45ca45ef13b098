package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/contracts"
	"vaultScope/internal/indexer"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Balancer V2 vault state indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Index vault, factory and pool logs from an RPC node",
		RunE:  runIndexer,
	}
	addEngineFlags(runCmd.Flags())
	addRPCFlags(runCmd.Flags())
	runCmd.Flags().Uint64("from-block", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to-block", 0, "end block (inclusive), 0 means latest minus confirmations")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().Uint64("confirmations", 6, "blocks to stay behind head")
	runCmd.Flags().Bool("follow", false, "keep polling for new blocks")
	runCmd.Flags().Duration("poll-interval", 12*time.Second, "head poll interval in follow mode")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-base-delay", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int("prefetch-workers", 4, "batches fetched ahead concurrently")
	runCmd.Flags().String("raw-log-output", "", "archive applied raw logs to this JSONL path")
	runCmd.Flags().String("export-cron", "", "export to postgres on this cron schedule while following")
	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a raw-log JSONL archive",
		RunE:  runReplay,
	}
	addEngineFlags(replayCmd.Flags())
	addRPCFlags(replayCmd.Flags())
	replayCmd.Flags().String("in", "", "input raw logs JSONL")
	replayCmd.Flags().Bool("offline", false, "treat every contract read as reverted instead of calling the node")
	root.AddCommand(replayCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Copy stored entities into postgres",
		RunE:  runExportCommand,
	}
	addStoreFlags(exportCmd.Flags())
	exportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	exportCmd.Flags().String("cron", "", "run on this cron schedule instead of once")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("network", "mainnet", "network: mainnet, polygon, arbitrum or local")
	fs.String("store-backend", "memory", "entity store: memory or redis")
	fs.String("memory-snapshot", "", "file the memory store is restored from and saved to")
	fs.String("redis-addr", "localhost:6379", "redis address")
	fs.String("redis-password", "", "redis password")
	fs.Int("redis-db", 0, "redis database")
}

func addEngineFlags(fs *pflag.FlagSet) {
	addStoreFlags(fs)
	fs.String("vault-address", config.DefaultVaultAddress, "vault contract address")
	fs.StringSlice("factories", nil, "pool factories as type:version:address (comma-separated)")
	fs.StringSlice("reward-distributors", nil, "reward distributor addresses (comma-separated)")
	fs.StringSlice("pricing-assets", nil, "override the network's pricing assets")
	fs.StringSlice("stable-assets", nil, "override the network's stable assets")
	fs.String("min-pool-liquidity-usd", "2000", "minimum pool liquidity for price updates")
	fs.String("min-swap-value-usd", "1", "minimum swap value for price updates")
	fs.Bool("fail-on-invariant", false, "halt instead of skipping events whose pool state is missing")
	fs.String("ipfs-gateway", "https://ipfs.io", "IPFS gateway for reward distributions")
	fs.Duration("ipfs-timeout", 30*time.Second, "IPFS request timeout")
	fs.String("pg-dsn", "", "Postgres DSN for export")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addRPCFlags(fs *pflag.FlagSet) {
	fs.String("rpc-url", "", "RPC URL")
	fs.Float64("rpc-rps", 0, "RPC requests per second, 0 means unlimited")
	fs.Int("rpc-burst", 1, "RPC request burst")
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{RPS: cfg.RPCRPS, Burst: cfg.RPCBurst})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	eng, err := buildEngine(ctx, cfg, contracts.NewRPCReader(chainClient, vaultAddress(cfg), logger), logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var archive storage.Storage = storage.Discard{}
	if cfg.RawLogOutput != "" {
		archive = storage.NewJsonlStorage(cfg.RawLogOutput)
	}

	if pg != nil && cfg.ExportCron != "" {
		scheduler, err := scheduleExport(ctx, cfg.ExportCron, pg, eng.store, eng.checkpointName, logger)
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:       cfg.FromBlock,
		ToBlock:         cfg.ToBlock,
		BatchSize:       cfg.BatchSize,
		Confirmations:   cfg.Confirmations,
		Follow:          cfg.Follow,
		PollInterval:    cfg.PollInterval,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBaseDelay,
		PrefetchWorkers: cfg.PrefetchWorkers,
		FailOnInvariant: cfg.FailOnInvariant,
	}, indexer.Deps{
		Source:     chainClient,
		Decoder:    eng.decoder,
		Applier:    eng.applier(),
		Watch:      eng.watch,
		Archive:    archive,
		Checkpoint: eng.checkpointer(),
	}, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("network", cfg.Network),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(eng.watch.Addresses())),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("prefetch_workers", cfg.PrefetchWorkers),
		zap.String("store", cfg.StoreBackend),
		zap.String("raw_log_output", cfg.RawLogOutput),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	if err := runner.Run(ctx); err != nil {
		return err
	}
	if pg != nil {
		return exportOnce(ctx, pg, eng.store, eng.checkpointName, logger)
	}
	return nil
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reader contracts.Reader = &contracts.Stub{}
	if !cfg.Offline {
		if cfg.RPCURL == "" {
			return fmt.Errorf("rpc url is required unless --offline is set")
		}
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{RPS: cfg.RPCRPS, Burst: cfg.RPCBurst})
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		reader = contracts.NewRPCReader(chainClient, vaultAddress(cfg), logger)
	}

	eng, err := buildEngine(ctx, cfg, reader, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	logger.Info("replay start",
		zap.String("input", cfg.Input),
		zap.Bool("offline", cfg.Offline),
		zap.String("store", cfg.StoreBackend),
	)

	applied, err := indexer.Replay(ctx, cfg.Input, eng.decoder, eng.applier(), cfg.FailOnInvariant, logger)
	if err != nil {
		return fmt.Errorf("replay %s: %w", cfg.Input, err)
	}
	if err := eng.flush(ctx); err != nil {
		return err
	}
	logger.Info("replay complete", zap.Int("events", applied))

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		return exportOnce(ctx, pg, eng.store, eng.checkpointName, logger)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
