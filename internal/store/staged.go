package store

import (
	"context"
	"sort"
	"sync"

	"vaultScope/internal/model"
)

// Write is one buffered mutation. A nil Data deletes the entity.
type Write struct {
	Kind model.Kind
	ID   string
	Data []byte
}

// BatchWriter is implemented by backends that apply a set of writes atomically.
type BatchWriter interface {
	WriteBatch(ctx context.Context, writes []Write) error
}

type stageKey struct {
	kind model.Kind
	id   string
}

// Staged buffers writes over a base store in two layers. The event layer holds
// the writes of the event being applied: Commit folds it into the batch layer
// and Rollback drops it. Flush writes the batch layer to the base store in one
// WriteBatch when the base supports it.
//
// Reads see the event layer first, then the batch layer, then the base.
type Staged struct {
	base Store

	mu      sync.RWMutex
	event   map[stageKey][]byte
	pending map[stageKey][]byte
}

func NewStaged(base Store) *Staged {
	return &Staged{
		base:    base,
		event:   make(map[stageKey][]byte),
		pending: make(map[stageKey][]byte),
	}
}

// Base returns the wrapped store.
func (s *Staged) Base() Store { return s.base }

func (s *Staged) lookup(k stageKey) ([]byte, bool) {
	if v, ok := s.event[k]; ok {
		return v, true
	}
	v, ok := s.pending[k]
	return v, ok
}

func (s *Staged) Get(ctx context.Context, kind model.Kind, id string) ([]byte, error) {
	s.mu.RLock()
	v, ok := s.lookup(stageKey{kind, id})
	s.mu.RUnlock()
	if !ok {
		return s.base.Get(ctx, kind, id)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Staged) Set(_ context.Context, kind model.Kind, id string, data []byte) error {
	v := make([]byte, len(data))
	copy(v, data)
	s.mu.Lock()
	s.event[stageKey{kind, id}] = v
	s.mu.Unlock()
	return nil
}

func (s *Staged) Delete(_ context.Context, kind model.Kind, id string) error {
	s.mu.Lock()
	s.event[stageKey{kind, id}] = nil
	s.mu.Unlock()
	return nil
}

// Scan visits base entities not shadowed by a buffered write, then the
// buffered entities of kind in id order.
func (s *Staged) Scan(ctx context.Context, kind model.Kind, fn func(id string, data []byte) error) error {
	s.mu.RLock()
	overlay := make(map[string][]byte)
	for k, v := range s.pending {
		if k.kind == kind {
			overlay[k.id] = v
		}
	}
	for k, v := range s.event {
		if k.kind == kind {
			overlay[k.id] = v
		}
	}
	s.mu.RUnlock()

	err := s.base.Scan(ctx, kind, func(id string, data []byte) error {
		if _, ok := overlay[id]; ok {
			return nil
		}
		return fn(id, data)
	})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(overlay))
	for id, v := range overlay {
		if v != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(id, append([]byte(nil), overlay[id]...)); err != nil {
			return err
		}
	}
	return nil
}

// Commit keeps the current event's writes.
func (s *Staged) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.event {
		s.pending[k] = v
	}
	s.event = make(map[stageKey][]byte)
}

// Rollback drops the current event's writes.
func (s *Staged) Rollback() {
	s.mu.Lock()
	s.event = make(map[stageKey][]byte)
	s.mu.Unlock()
}

// Pending returns the number of committed writes not yet flushed.
func (s *Staged) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Flush writes the committed writes to the base store. On failure they stay
// buffered.
func (s *Staged) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	writes := make([]Write, 0, len(s.pending))
	for k, v := range s.pending {
		writes = append(writes, Write{Kind: k.kind, ID: k.id, Data: v})
	}
	sort.Slice(writes, func(i, j int) bool {
		if writes[i].Kind != writes[j].Kind {
			return writes[i].Kind < writes[j].Kind
		}
		return writes[i].ID < writes[j].ID
	})

	if err := writeAll(ctx, s.base, writes); err != nil {
		return err
	}
	s.pending = make(map[stageKey][]byte)
	return nil
}

func (s *Staged) Close() error {
	return s.base.Close()
}

func writeAll(ctx context.Context, base Store, writes []Write) error {
	if bw, ok := base.(BatchWriter); ok {
		return bw.WriteBatch(ctx, writes)
	}
	for _, w := range writes {
		var err error
		if w.Data == nil {
			err = base.Delete(ctx, w.Kind, w.ID)
		} else {
			err = base.Set(ctx, w.Kind, w.ID, w.Data)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
