package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/entity"
	"vaultScope/internal/model"
	"vaultScope/internal/storage"
	"vaultScope/internal/store"
	"vaultScope/internal/vault"
)

var (
	factory = common.HexToAddress("0x00000000000000000000000000000000000fac01")
	pool    = common.HexToAddress("0x00000000000000000000000000000000000000b9")

	topicCreated  = common.HexToHash("0xc1")
	topicTransfer = common.HexToHash("0xc2")
	topicSwap     = common.HexToHash("0xc3")
	topicUnknown  = common.HexToHash("0xff")
	topicBroken   = common.HexToHash("0xc4")
)

type fakeSource struct {
	mu      sync.Mutex
	logs    []types.Log
	senders []common.Hash
	filters int
}

func (s *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (s *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return 20, nil }

func (s *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return number * 12, nil
}

func (s *fakeSource) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, _ []common.Hash) ([]types.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters++
	var out []types.Log
	for _, l := range s.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		for _, a := range addresses {
			if a == l.Address {
				out = append(out, l)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeSource) TxSender(_ context.Context, hash common.Hash) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders = append(s.senders, hash)
	return common.HexToAddress("0x0000000000000000000000000000000000a11ce0"), nil
}

type fakeDecoder struct{}

var eventNames = map[string]string{
	topicCreated.Hex():  model.EventPoolCreated,
	topicTransfer.Hex(): model.EventTransfer,
	topicSwap.Hex():     model.EventSwap,
	topicBroken.Hex():   "Broken",
}

func (fakeDecoder) CanDecode(topic0 string) bool {
	_, ok := eventNames[topic0]
	return ok
}

func (fakeDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if log.Topics[0] == topicBroken.Hex() {
		return nil, fmt.Errorf("short data")
	}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     strings.ToLower(log.Address),
		TxFrom:      log.TxFrom,
		EventName:   eventNames[log.Topics[0]],
		Timestamp:   log.Timestamp,
	}, nil
}

func (fakeDecoder) Topics() []common.Hash {
	return []common.Hash{topicCreated, topicTransfer, topicSwap}
}

// fakeApplier records the apply order and registers the pool on creation.
type fakeApplier struct {
	watch   *WatchSet
	applied []string
	fail    map[string]error
}

func (a *fakeApplier) Apply(_ context.Context, ev *model.TypedEvent) error {
	key := fmt.Sprintf("%s@%d.%d", ev.EventName, ev.BlockNumber, ev.LogIndex)
	if err := a.fail[ev.EventName]; err != nil {
		return err
	}
	a.applied = append(a.applied, key)
	if ev.EventName == model.EventPoolCreated {
		a.watch.Watch(pool, ev.BlockNumber)
	}
	return nil
}

type memCheckpoint struct {
	last  uint64
	ok    bool
	saves []uint64
}

func (c *memCheckpoint) Load(context.Context) (uint64, bool, error) { return c.last, c.ok, nil }

func (c *memCheckpoint) Save(_ context.Context, block uint64) error {
	c.last, c.ok = block, true
	c.saves = append(c.saves, block)
	return nil
}

type memArchive struct {
	records []model.LogRecord
	rejects []model.DecodeError
}

func (m *memArchive) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func (m *memArchive) PutDecodeErrors(errs []model.DecodeError) error {
	m.rejects = append(m.rejects, errs...)
	return nil
}

func rawLog(address common.Address, topic common.Hash, block uint64, index uint) types.Log {
	return types.Log{
		Address:     address,
		Topics:      []common.Hash{topic},
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
	}
}

func scenario() *fakeSource {
	return &fakeSource{logs: []types.Log{
		rawLog(pool, topicTransfer, 10, 0),
		rawLog(factory, topicCreated, 10, 1),
		rawLog(factory, topicUnknown, 10, 2),
		rawLog(factory, topicBroken, 10, 3),
		rawLog(factory, topicTransfer, 11, 0),
		rawLog(pool, topicSwap, 12, 3),
	}}
}

type fixture struct {
	source     *fakeSource
	watch      *WatchSet
	applier    *fakeApplier
	checkpoint *memCheckpoint
	archive    *memArchive
}

func newFixture() *fixture {
	watch := NewWatchSet([]common.Address{factory})
	return &fixture{
		source:     scenario(),
		watch:      watch,
		applier:    &fakeApplier{watch: watch},
		checkpoint: &memCheckpoint{},
		archive:    &memArchive{},
	}
}

func (f *fixture) runner(cfg RunConfig) *Runner {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2
	}
	if cfg.ToBlock == 0 {
		cfg.ToBlock = 13
	}
	if cfg.FromBlock == 0 {
		cfg.FromBlock = 10
	}
	return NewRunner(cfg, Deps{
		Source:     f.source,
		Decoder:    fakeDecoder{},
		Applier:    f.applier,
		Watch:      f.watch,
		Archive:    f.archive,
		Checkpoint: f.checkpoint,
	}, nil)
}

func TestRunAppliesRegisteredPoolLogsInOrder(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.runner(RunConfig{PrefetchWorkers: 2}).Run(context.Background()))

	require.Equal(t, []string{
		"PoolCreated@10.1",
		"Transfer@10.0",
		"Transfer@11.0",
		"Swap@12.3",
	}, f.applier.applied)
	require.True(t, f.watch.Contains(pool))
	require.Equal(t, []uint64{11, 13}, f.checkpoint.saves)
}

func TestRunResolvesSenderForSwapsOnly(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.runner(RunConfig{PrefetchWorkers: 1}).Run(context.Background()))

	require.Len(t, f.source.senders, 1)
	require.Equal(t, rawLog(pool, topicSwap, 12, 3).TxHash, f.source.senders[0])
}

func TestRunArchivesAppliedRecords(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.runner(RunConfig{}).Run(context.Background()))

	require.Len(t, f.archive.records, 4)
	last := f.archive.records[3]
	require.Equal(t, uint64(12), last.BlockNumber)
	require.Equal(t, uint64(144), last.Timestamp)
	require.Equal(t, "0x0000000000000000000000000000000000a11ce0", last.TxFrom)
	for _, rec := range f.archive.records[:3] {
		require.Empty(t, rec.TxFrom)
	}

	require.Len(t, f.archive.rejects, 1)
	require.Equal(t, uint64(3), f.archive.rejects[0].LogIndex)
	require.Equal(t, "short data", f.archive.rejects[0].Error)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	f := newFixture()
	f.checkpoint.last, f.checkpoint.ok = 11, true
	f.watch.Watch(pool, 10)
	f.watch.Drain()

	require.NoError(t, f.runner(RunConfig{}).Run(context.Background()))
	require.Equal(t, []string{"Swap@12.3"}, f.applier.applied)
	require.Equal(t, []uint64{13}, f.checkpoint.saves)
}

func TestRunSkipsInvariantViolations(t *testing.T) {
	f := newFixture()
	f.applier.fail = map[string]error{
		model.EventSwap: fmt.Errorf("swap: %w", vault.ErrMissingPoolToken),
	}

	require.NoError(t, f.runner(RunConfig{}).Run(context.Background()))
	require.Len(t, f.applier.applied, 3)
	require.Equal(t, []uint64{11, 13}, f.checkpoint.saves)
}

func TestRunHaltsOnInvariantWhenConfigured(t *testing.T) {
	f := newFixture()
	f.applier.fail = map[string]error{
		model.EventSwap: fmt.Errorf("swap: %w", vault.ErrMissingPoolToken),
	}

	err := f.runner(RunConfig{FailOnInvariant: true}).Run(context.Background())
	require.ErrorIs(t, err, vault.ErrMissingPoolToken)
	require.Equal(t, []uint64{11}, f.checkpoint.saves)
}

func TestRunHaltsOnHandlerError(t *testing.T) {
	f := newFixture()
	f.applier.fail = map[string]error{model.EventTransfer: fmt.Errorf("boom")}

	err := f.runner(RunConfig{}).Run(context.Background())
	require.ErrorContains(t, err, "boom")
	require.Empty(t, f.checkpoint.saves)
}

func TestRunRequiresAddresses(t *testing.T) {
	f := newFixture()
	f.watch = NewWatchSet(nil)
	f.applier.watch = f.watch

	require.Error(t, f.runner(RunConfig{}).Run(context.Background()))
}

func TestReplayAppliesArchiveInOrder(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.runner(RunConfig{}).Run(context.Background()))

	path := filepath.Join(t.TempDir(), "logs.jsonl")
	require.NoError(t, storage.NewJsonlStorage(path).PutLogBatch(f.archive.records))

	replayed := &fakeApplier{watch: NewWatchSet(nil)}
	n, err := Replay(context.Background(), path, fakeDecoder{}, replayed, false, nil)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, f.applier.applied, replayed.applied)
}

func TestSplicePlacesConstructorLogsFirst(t *testing.T) {
	current := rawLog(factory, topicCreated, 10, 5)
	rest := []types.Log{rawLog(factory, topicTransfer, 10, 8), rawLog(factory, topicTransfer, 12, 0)}
	extra := []types.Log{
		rawLog(pool, topicTransfer, 11, 1),
		rawLog(pool, topicTransfer, 10, 2),
		rawLog(pool, topicTransfer, 10, 6),
	}

	got := splice(rest, extra, current)
	var order []string
	for _, l := range got {
		order = append(order, fmt.Sprintf("%d.%d", l.BlockNumber, l.Index))
	}
	require.Equal(t, []string{"10.2", "10.6", "10.8", "11.1", "12.0"}, order)
}

// countingApplier bumps a counter in the store for every event, then fails
// events named fail with err.
type countingApplier struct {
	store store.Store
	fail  string
	err   error
}

func (a *countingApplier) Apply(ctx context.Context, ev *model.TypedEvent) error {
	n := 0
	data, err := a.store.Get(ctx, model.KindUser, "applied")
	switch {
	case err == nil:
		n, _ = strconv.Atoi(string(data))
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	if err := a.store.Set(ctx, model.KindUser, "applied", []byte(strconv.Itoa(n+1))); err != nil {
		return err
	}
	if ev.EventName == a.fail {
		return a.err
	}
	return nil
}

func appliedCount(t *testing.T, s store.Store) int {
	t.Helper()
	data, err := s.Get(context.Background(), model.KindUser, "applied")
	if errors.Is(err, store.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	n, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	return n
}

// stagedRun runs blocks 10..13 in batches of two over base, the way the
// engine wires a persistent store.
func stagedRun(base store.Store, fail string, failErr error, failOnInvariant bool) error {
	stage := store.NewStaged(base)
	source := &fakeSource{logs: []types.Log{
		rawLog(factory, topicTransfer, 10, 0),
		rawLog(factory, topicTransfer, 12, 0),
		rawLog(factory, topicSwap, 12, 1),
	}}
	runner := NewRunner(RunConfig{BatchSize: 2, FromBlock: 10, ToBlock: 13, FailOnInvariant: failOnInvariant}, Deps{
		Source:     source,
		Decoder:    fakeDecoder{},
		Applier:    StagedApplier{Next: &countingApplier{store: stage, fail: fail, err: failErr}, Stage: stage},
		Watch:      NewWatchSet([]common.Address{factory}),
		Checkpoint: &StoreCheckpoint{Stage: stage, Name: "vault:test"},
	}, nil)
	return runner.Run(context.Background())
}

func TestRunAfterMidBatchHaltAppliesEventsOnce(t *testing.T) {
	base := store.NewMemory()

	err := stagedRun(base, model.EventSwap, errors.New("store unavailable"), false)
	require.ErrorContains(t, err, "store unavailable")
	// The second batch's Transfer was applied before the halt but never stored.
	require.Equal(t, 1, appliedCount(t, base))
	cp, ok, err := LoadCheckpoint(context.Background(), base, "vault:test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(11), cp.LastProcessedBlock)

	require.NoError(t, stagedRun(base, "", nil, false))
	require.Equal(t, 3, appliedCount(t, base))
	cp, ok, err = LoadCheckpoint(context.Background(), base, "vault:test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(13), cp.LastProcessedBlock)
}

func TestRunSkippedInvariantLeavesNoWrites(t *testing.T) {
	base := store.NewMemory()

	err := stagedRun(base, model.EventSwap, fmt.Errorf("swap: %w", vault.ErrMissingPoolToken), false)
	require.NoError(t, err)
	require.Equal(t, 2, appliedCount(t, base))
}

func TestRunHaltOnInvariantKeepsLastCheckpointState(t *testing.T) {
	base := store.NewMemory()

	err := stagedRun(base, model.EventSwap, fmt.Errorf("swap: %w", vault.ErrMissingPoolToken), true)
	require.ErrorIs(t, err, vault.ErrMissingPoolToken)
	require.Equal(t, 1, appliedCount(t, base))

	require.NoError(t, stagedRun(base, "", nil, false))
	require.Equal(t, 3, appliedCount(t, base))
}

func TestIsInvariantCoversPoolTokenLoads(t *testing.T) {
	repo := entity.New(store.NewMemory(), nil, nil)
	p := entity.NewPool("0x01", "0x02", model.PoolTypeWeighted, 1)
	p.TokensList = []string{"0x0000000000000000000000000000000000000aaa"}

	_, err := repo.PoolTokens(context.Background(), p)
	require.True(t, IsInvariant(fmt.Errorf("liquidity: %w", err)))
	require.False(t, IsInvariant(errors.New("connection refused")))
}
