package indexer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultScope/internal/model"
	"vaultScope/internal/storage"
)

// Source is the chain access the runner needs. chain.Client satisfies it.
type Source interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	TxSender(ctx context.Context, txHash common.Hash) (common.Address, error)
}

// Decoder turns raw log records into typed events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
	Topics() []common.Hash
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock       uint64
	ToBlock         uint64
	BatchSize       uint64
	Confirmations   uint64
	Follow          bool
	PollInterval    time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	PrefetchWorkers int
	FailOnInvariant bool
}

// Deps are the runner's collaborators. Archive and Checkpoint may be nil.
type Deps struct {
	Source     Source
	Decoder    Decoder
	Applier    Applier
	Watch      *WatchSet
	Archive    storage.Storage
	Checkpoint Checkpointer
}

// Runner fetches logs for the watch set and applies them in (block, logIndex)
// order. Fetches for upcoming batches run concurrently; application does not.
type Runner struct {
	cfg    RunConfig
	deps   Deps
	logger *zap.Logger

	chainID uint64
	topics  []common.Hash
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Archive == nil {
		deps.Archive = storage.Discard{}
	}
	if deps.Checkpoint == nil {
		deps.Checkpoint = noCheckpoint{}
	}
	if cfg.PrefetchWorkers <= 0 {
		cfg.PrefetchWorkers = 1
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Run executes the indexing loop. In follow mode it keeps polling for new
// blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.deps.Source == nil {
		return fmt.Errorf("chain source is nil")
	}
	if r.deps.Decoder == nil || r.deps.Applier == nil || r.deps.Watch == nil {
		return fmt.Errorf("decoder, applier and watch set are required")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.deps.Watch.Addresses()) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.deps.Source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	r.chainID = chainID.Uint64()
	r.topics = r.deps.Decoder.Topics()

	from := r.cfg.FromBlock
	last, ok, err := r.deps.Checkpoint.Load(ctx)
	if err != nil {
		return err
	}
	if ok && last >= from {
		from = last + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
	}

	pool := pond.NewPool(r.cfg.PrefetchWorkers, pond.WithQueueSize(r.cfg.PrefetchWorkers*2))
	defer pool.StopAndWait()

	for {
		to, err := r.target(ctx)
		if err != nil {
			return err
		}
		if from <= to {
			if err := r.syncRange(ctx, pool, from, to); err != nil {
				return err
			}
			from = to + 1
		} else {
			r.logger.Debug("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		}

		if !r.cfg.Follow || (r.cfg.ToBlock != 0 && from > r.cfg.ToBlock) {
			return nil
		}
		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Runner) target(ctx context.Context) (uint64, error) {
	if r.cfg.ToBlock != 0 {
		return r.cfg.ToBlock, nil
	}
	var latest uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = r.deps.Source.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	if latest < r.cfg.Confirmations {
		return 0, nil
	}
	return latest - r.cfg.Confirmations, nil
}

// prefetch is one batch whose logs are being fetched in the background.
type prefetch struct {
	blockRange BlockRange
	addresses  []common.Address
	logs       []types.Log
	err        error
	task       pond.Task
}

func (r *Runner) syncRange(ctx context.Context, pool pond.Pool, from, to uint64) error {
	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var queue []*prefetch
	next := 0
	fill := func() {
		for next < len(ranges) && len(queue) < r.cfg.PrefetchWorkers {
			p := &prefetch{blockRange: ranges[next], addresses: r.deps.Watch.Addresses()}
			p.task = pool.Submit(func() {
				p.logs, p.err = r.filterLogsWithRetry(fetchCtx, p.blockRange.From, p.blockRange.To, p.addresses)
			})
			queue = append(queue, p)
			next++
		}
	}

	fill()
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if err := p.task.Wait(); err != nil {
			return fmt.Errorf("fetch task: %w", err)
		}
		if p.err != nil {
			return fmt.Errorf("filter logs: %w", p.err)
		}

		if err := r.applyBatch(ctx, p); err != nil {
			return err
		}
		if err := r.deps.Checkpoint.Save(ctx, p.blockRange.To); err != nil {
			return err
		}
		fill()
	}
	return nil
}

func (r *Runner) applyBatch(ctx context.Context, p *prefetch) error {
	br := p.blockRange
	logs := p.logs

	// Addresses registered after this batch was prefetched.
	fetched := make(map[common.Address]struct{}, len(p.addresses))
	for _, a := range p.addresses {
		fetched[a] = struct{}{}
	}
	var missing []common.Address
	for _, a := range r.deps.Watch.Addresses() {
		if _, ok := fetched[a]; !ok {
			missing = append(missing, a)
		}
	}
	if len(missing) > 0 {
		extra, err := r.filterLogsWithRetry(ctx, br.From, br.To, missing)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}
		logs = append(logs, extra...)
	}
	sortLogs(logs)

	ingestedAt := time.Now().UTC()
	seen := make(map[string]struct{}, len(logs))
	records := make([]model.LogRecord, 0, len(logs))
	var rejects []model.DecodeError
	applied := 0
	for i := 0; i < len(logs); i++ {
		log := logs[i]
		key := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		record, ev, ok, err := r.prepare(ctx, log, ingestedAt, &rejects)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		records = append(records, record)
		if err := applyEvent(ctx, r.deps.Applier, ev, r.cfg.FailOnInvariant, r.logger); err != nil {
			return err
		}
		applied++

		if added := r.deps.Watch.Drain(); len(added) > 0 {
			extra, err := r.fetchAdded(ctx, added, br)
			if err != nil {
				return err
			}
			logs = append(logs[:i+1:i+1], splice(logs[i+1:], extra, log)...)
		}
	}

	if err := r.deps.Archive.PutLogBatch(records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}
	if err := r.deps.Archive.PutDecodeErrors(rejects); err != nil {
		return fmt.Errorf("store decode errors: %w", err)
	}
	r.logger.Info("batch complete",
		zap.Int("logs", applied),
		zap.Int("decode_errors", len(rejects)),
		zap.Uint64("from", br.From),
		zap.Uint64("to", br.To),
	)
	return nil
}

// fetchAdded reads the logs of newly watched addresses for the rest of the batch,
// starting at each address's first block.
func (r *Runner) fetchAdded(ctx context.Context, added []WatchEntry, br BlockRange) ([]types.Log, error) {
	var out []types.Log
	for _, entry := range added {
		rest, ok := br.Clamp(entry.FromBlock)
		if !ok {
			continue
		}
		logs, err := r.filterLogsWithRetry(ctx, rest.From, rest.To, []common.Address{entry.Address})
		if err != nil {
			return nil, fmt.Errorf("filter logs for %s: %w", entry.Address.Hex(), err)
		}
		out = append(out, logs...)
	}
	return out, nil
}

// splice merges extra into the ordered remainder of a batch. Logs positioned
// before current were emitted alongside the registration and are applied next.
func splice(rest, extra []types.Log, current types.Log) []types.Log {
	sortLogs(extra)
	var early, late []types.Log
	for _, l := range extra {
		if before(current, l) {
			late = append(late, l)
		} else {
			early = append(early, l)
		}
	}

	merged := make([]types.Log, 0, len(early)+len(rest)+len(late))
	merged = append(merged, early...)
	a, b := 0, 0
	for a < len(rest) && b < len(late) {
		if before(late[b], rest[a]) {
			merged = append(merged, late[b])
			b++
		} else {
			merged = append(merged, rest[a])
			a++
		}
	}
	merged = append(merged, rest[a:]...)
	return append(merged, late[b:]...)
}

// prepare decodes a log and attaches its block timestamp. The transaction sender
// is only resolved for swaps. ok is false for logs the engine does not consume;
// logs that fail to decode are appended to rejects.
func (r *Runner) prepare(ctx context.Context, log types.Log, ingestedAt time.Time, rejects *[]model.DecodeError) (model.LogRecord, *model.TypedEvent, bool, error) {
	if log.Removed || len(log.Topics) == 0 || !r.deps.Decoder.CanDecode(log.Topics[0].Hex()) {
		return model.LogRecord{}, nil, false, nil
	}
	ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
	if err != nil {
		return model.LogRecord{}, nil, false, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
	}
	record := buildLogRecord(r.chainID, log, ts, ingestedAt)
	ev, err := r.deps.Decoder.Decode(record)
	if err != nil {
		r.logger.Warn("decode failed", zap.Error(err),
			zap.String("tx_hash", record.TxHash), zap.Uint64("log_index", record.LogIndex))
		*rejects = append(*rejects, model.NewDecodeError(record, err))
		return model.LogRecord{}, nil, false, nil
	}

	if ev.EventName == model.EventSwap {
		sender, err := r.txSenderWithRetry(ctx, log.TxHash)
		if err != nil {
			return model.LogRecord{}, nil, false, fmt.Errorf("tx sender %s: %w", log.TxHash.Hex(), err)
		}
		record.TxFrom = strings.ToLower(sender.Hex())
		ev.TxFrom = record.TxFrom
	}
	return record, ev, true, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.deps.Source.FilterLogs(ctx, fromBlock, toBlock, addresses, r.topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.deps.Source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) txSenderWithRetry(ctx context.Context, txHash common.Hash) (common.Address, error) {
	var sender common.Address
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sender, err = r.deps.Source.TxSender(ctx, txHash)
		if err != nil {
			r.logger.Warn("tx sender fetch failed", zap.Error(err), zap.String("tx_hash", txHash.Hex()))
		}
		return err
	})
	return sender, err
}

// applyEvent applies ev. Invariant violations are skipped with a warning unless
// failOnInvariant is set; any other error halts.
func applyEvent(ctx context.Context, applier Applier, ev *model.TypedEvent, failOnInvariant bool, logger *zap.Logger) error {
	err := applier.Apply(ctx, ev)
	if err == nil {
		return nil
	}
	if IsInvariant(err) && !failOnInvariant {
		logger.Warn("invariant violation, event skipped", zap.Error(err),
			zap.String("tx_hash", ev.TxHash), zap.Uint64("log_index", ev.LogIndex))
		return nil
	}
	return fmt.Errorf("apply: %w", err)
}
