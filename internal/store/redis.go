package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vaultScope/internal/model"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. per network.
	Prefix string
}

// Redis stores each entity under "<prefix>:<kind>:<id>" and tracks ids per kind in a set.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "vaultscope"
	}
	logger.Info("connected to redis entity store", zap.String("addr", opts.Addr), zap.Int("db", opts.DB), zap.String("prefix", prefix))
	return &Redis{client: rdb, prefix: prefix, logger: logger}, nil
}

func (r *Redis) key(kind model.Kind, id string) string {
	return r.prefix + ":" + string(kind) + ":" + id
}

func (r *Redis) index(kind model.Kind) string {
	return r.prefix + ":ids:" + string(kind)
}

func (r *Redis) Get(ctx context.Context, kind model.Kind, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, kind model.Kind, id string, data []byte) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(kind, id), data, 0)
	pipe.SAdd(ctx, r.index(kind), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Delete(ctx context.Context, kind model.Kind, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(kind, id))
	pipe.SRem(ctx, r.index(kind), id)
	_, err := pipe.Exec(ctx)
	return err
}

// WriteBatch applies writes and their index updates in one MULTI/EXEC.
func (r *Redis) WriteBatch(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range writes {
			if w.Data == nil {
				pipe.Del(ctx, r.key(w.Kind, w.ID))
				pipe.SRem(ctx, r.index(w.Kind), w.ID)
				continue
			}
			pipe.Set(ctx, r.key(w.Kind, w.ID), w.Data, 0)
			pipe.SAdd(ctx, r.index(w.Kind), w.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write batch of %d: %w", len(writes), err)
	}
	r.logger.Debug("redis batch written", zap.Int("writes", len(writes)))
	return nil
}

func (r *Redis) Scan(ctx context.Context, kind model.Kind, fn func(id string, data []byte) error) error {
	var cursor uint64
	for {
		ids, next, err := r.client.SScan(ctx, r.index(kind), cursor, "", 500).Result()
		if err != nil {
			return fmt.Errorf("scan %s ids: %w", kind, err)
		}
		for _, id := range ids {
			data, err := r.Get(ctx, kind, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := fn(id, data); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
