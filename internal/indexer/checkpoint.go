package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// Checkpointer persists the last fully applied block.
type Checkpointer interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// Checkpoint tracks the last processed block.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// StoreCheckpoint keeps the checkpoint in the entity store, next to the state
// it describes. Save adds the checkpoint to the staged batch and flushes both
// in one write, so a batch is either fully stored with its checkpoint or not
// at all. Persist, when set, runs after each flush.
type StoreCheckpoint struct {
	Stage   *store.Staged
	Name    string
	Persist func() error
}

func (c *StoreCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	cp, ok, err := LoadCheckpoint(ctx, c.Stage, c.Name)
	return cp.LastProcessedBlock, ok, err
}

func (c *StoreCheckpoint) Save(ctx context.Context, lastProcessed uint64) error {
	cp := Checkpoint{
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := c.Stage.Set(ctx, model.KindIndexerState, c.Name, data); err != nil {
		return fmt.Errorf("stage checkpoint: %w", err)
	}
	c.Stage.Commit()
	if err := c.Stage.Flush(ctx); err != nil {
		return fmt.Errorf("flush batch at block %d: %w", lastProcessed, err)
	}
	if c.Persist != nil {
		return c.Persist()
	}
	return nil
}

// LoadCheckpoint reads the named checkpoint from s.
func LoadCheckpoint(ctx context.Context, s store.Store, name string) (Checkpoint, bool, error) {
	data, err := s.Get(ctx, model.KindIndexerState, name)
	if errors.Is(err, store.ErrNotFound) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, true, nil
}

type noCheckpoint struct{}

func (noCheckpoint) Load(context.Context) (uint64, bool, error) { return 0, false, nil }

func (noCheckpoint) Save(context.Context, uint64) error { return nil }
