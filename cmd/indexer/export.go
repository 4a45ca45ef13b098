package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/indexer"
	"vaultScope/internal/storage/postgres"
	"vaultScope/internal/store"
)

// exportTimeout bounds one scheduled export.
const exportTimeout = 10 * time.Minute

func runExportCommand(cmd *cobra.Command, _ []string) error {
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

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	schedule, _ := cmd.Flags().GetString("cron")
	if schedule == "" {
		schedule = cfg.ExportCron
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := &engine{snapshot: cfg.MemorySnapshot}
	if err := eng.openStore(ctx, cfg, logger); err != nil {
		return err
	}
	defer eng.Close()

	pg, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}

	logger.Info("export start",
		zap.String("store", cfg.StoreBackend),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("cron", schedule),
	)

	if schedule == "" {
		return exportOnce(ctx, pg, eng.store, eng.checkpointName, logger)
	}

	scheduler, err := scheduleExport(ctx, schedule, pg, eng.store, eng.checkpointName, logger)
	if err != nil {
		return err
	}
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

// exportOnce copies src into pg and records the block the copy reflects under
// the checkpoint name.
func exportOnce(ctx context.Context, pg *postgres.Store, src store.Store, checkpoint string, logger *zap.Logger) error {
	start := time.Now()
	cp, ok, err := indexer.LoadCheckpoint(ctx, src, checkpoint)
	if err != nil {
		return err
	}
	n, err := pg.Export(ctx, src)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if ok {
		if err := pg.SaveState(ctx, checkpoint, cp.LastProcessedBlock); err != nil {
			return fmt.Errorf("save export state: %w", err)
		}
	}
	logger.Info("export complete",
		zap.Int("entities", n),
		zap.Uint64("last_processed_block", cp.LastProcessedBlock),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// scheduleExport starts a cron job exporting src. The schedule takes an
// optional seconds field.
func scheduleExport(ctx context.Context, spec string, pg *postgres.Store, src store.Store, checkpoint string, logger *zap.Logger) (*cron.Cron, error) {
	cl := cronLogger{logger: logger.Sugar()}
	scheduler := cron.New(
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	_, err := scheduler.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, exportTimeout)
		defer cancel()
		if err := exportOnce(rctx, pg, src, checkpoint, logger); err != nil {
			logger.Error("scheduled export failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("export schedule %q: %w", spec, err)
	}
	scheduler.Start()
	return scheduler, nil
}

// cronLogger routes cron's logr-style calls to zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
