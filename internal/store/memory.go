package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"vaultScope/internal/model"
)

// Memory is an in-process Store. It can be dumped to and restored from a JSON file.
type Memory struct {
	mu   sync.RWMutex
	data map[model.Kind]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[model.Kind]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, kind model.Kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, kind model.Kind, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[kind]
	if !ok {
		bucket = make(map[string][]byte)
		m.data[kind] = bucket
	}
	v := make([]byte, len(data))
	copy(v, data)
	bucket[id] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, kind model.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[kind], id)
	return nil
}

func (m *Memory) Scan(ctx context.Context, kind model.Kind, fn func(id string, data []byte) error) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.data[kind]))
	for id := range m.data[kind] {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := m.Get(ctx, kind, id)
		if err != nil {
			continue
		}
		if err := fn(id, data); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch applies writes under a single lock.
func (m *Memory) WriteBatch(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		if w.Data == nil {
			delete(m.data[w.Kind], w.ID)
			continue
		}
		bucket, ok := m.data[w.Kind]
		if !ok {
			bucket = make(map[string][]byte)
			m.data[w.Kind] = bucket
		}
		bucket[w.ID] = append([]byte(nil), w.Data...)
	}
	return nil
}

// Len returns the number of entities of kind.
func (m *Memory) Len(kind model.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[kind])
}

func (m *Memory) Close() error { return nil }

// Dump writes the whole store as JSON.
func (m *Memory) Dump(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.Kind]map[string]json.RawMessage, len(m.data))
	for kind, bucket := range m.data {
		b := make(map[string]json.RawMessage, len(bucket))
		for id, v := range bucket {
			b[id] = v
		}
		out[kind] = b
	}
	return json.NewEncoder(w).Encode(out)
}

// Restore replaces the store contents with a previous Dump.
func (m *Memory) Restore(r io.Reader) error {
	var in map[model.Kind]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("decode store dump: %w", err)
	}
	data := make(map[model.Kind]map[string][]byte, len(in))
	for kind, bucket := range in {
		b := make(map[string][]byte, len(bucket))
		for id, v := range bucket {
			b[id] = []byte(v)
		}
		data[kind] = b
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// SaveFile dumps the store to path through a temp file and rename.
func (m *Memory) SaveFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := m.Dump(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFile restores the store from path. A missing file leaves the store empty.
func (m *Memory) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return m.Restore(f)
}
