// Package store is the key-value entity store the engine reads and writes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vaultScope/internal/model"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("entity not found")

// Store persists encoded entities by kind and id.
type Store interface {
	Get(ctx context.Context, kind model.Kind, id string) ([]byte, error)
	Set(ctx context.Context, kind model.Kind, id string, data []byte) error
	Delete(ctx context.Context, kind model.Kind, id string) error
	// Scan calls fn for every entity of kind. Order is unspecified.
	Scan(ctx context.Context, kind model.Kind, fn func(id string, data []byte) error) error
	Close() error
}

// entityPtr constrains PT to be a pointer to T implementing model.Entity.
type entityPtr[T any] interface {
	*T
	model.Entity
}

// Load returns the entity with id, or nil when it does not exist.
func Load[T any, PT entityPtr[T]](ctx context.Context, s Store, id string) (PT, error) {
	var zero T
	kind := PT(&zero).EntityKind()
	data, err := s.Get(ctx, kind, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	out := PT(new(T))
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return out, nil
}

// Save encodes and writes an entity.
func Save(ctx context.Context, s Store, e model.Entity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}
	if err := s.Set(ctx, e.EntityKind(), e.EntityID(), data); err != nil {
		return fmt.Errorf("save %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}
	return nil
}

// SaveAll saves entities in order and stops at the first failure.
func SaveAll(ctx context.Context, s Store, entities ...model.Entity) error {
	for _, e := range entities {
		if err := Save(ctx, s, e); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes an entity; removing a missing entity is not an error.
func Remove(ctx context.Context, s Store, kind model.Kind, id string) error {
	if err := s.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("remove %s %s: %w", kind, id, err)
	}
	return nil
}

// GetOrCreate loads id, or builds it with create and saves it.
// create only runs the first time id is seen, so accumulated fields are never reset.
func GetOrCreate[T any, PT entityPtr[T]](ctx context.Context, s Store, id string, create func() PT) (PT, error) {
	existing, err := Load[T, PT](ctx, s, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	created := create()
	if err := Save(ctx, s, created); err != nil {
		return nil, err
	}
	return created, nil
}
