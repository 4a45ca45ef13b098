package indexer

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v3"

	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// WatchEntry is an address added to the watch set and the block its logs start at.
type WatchEntry struct {
	Address   common.Address
	FromBlock uint64
}

// WatchSet is the set of contract addresses whose logs are fetched. Static
// addresses are fixed at startup; pools and oracles join as they are created.
type WatchSet struct {
	addrs *xsync.MapOf[common.Address, uint64]

	mu      sync.Mutex
	pending []WatchEntry
}

func NewWatchSet(static []common.Address) *WatchSet {
	w := &WatchSet{addrs: xsync.NewMapOf[common.Address, uint64]()}
	for _, a := range static {
		w.addrs.Store(a, 0)
	}
	return w
}

// Watch adds address. Addresses already present are ignored.
func (w *WatchSet) Watch(address common.Address, fromBlock uint64) {
	if _, loaded := w.addrs.LoadOrStore(address, fromBlock); loaded {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, WatchEntry{Address: address, FromBlock: fromBlock})
	w.mu.Unlock()
}

// Drain returns the addresses added since the previous call.
func (w *WatchSet) Drain() []WatchEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

func (w *WatchSet) Contains(address common.Address) bool {
	_, ok := w.addrs.Load(address)
	return ok
}

// Addresses returns a sorted snapshot of the set.
func (w *WatchSet) Addresses() []common.Address {
	out := make([]common.Address, 0, w.addrs.Size())
	w.addrs.Range(func(a common.Address, _ uint64) bool {
		out = append(out, a)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Restore re-adds the pools and FX oracles already registered in s, so a resumed
// run keeps following them.
func (w *WatchSet) Restore(ctx context.Context, s store.Store) (int, error) {
	n := 0
	for _, kind := range []model.Kind{model.KindPoolContract, model.KindFXOracle} {
		err := s.Scan(ctx, kind, func(id string, _ []byte) error {
			if common.IsHexAddress(id) {
				w.addrs.Store(common.HexToAddress(id), 0)
				n++
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
