package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultScope/internal/model"
	"vaultScope/internal/store"
)

// DefaultBatchSize bounds the number of upserts queued per round trip.
const DefaultBatchSize = 500

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT        PRIMARY KEY,
	last_processed_block BIGINT      NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store exports entities to Postgres and records the block each export reflects.
type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, batchSize: DefaultBatchSize}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the export tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Row is one encoded entity.
type Row struct {
	ID   string
	Data []byte
}

// UpsertEntities inserts or replaces rows of one kind.
func (s *Store) UpsertEntities(ctx context.Context, kind model.Kind, rows []Row) error {
	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		chunk := rows[start:end]

		batch := &pgx.Batch{}
		for _, row := range chunk {
			batch.Queue(`
				INSERT INTO entities (kind, id, data, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (kind, id)
				DO UPDATE SET data = EXCLUDED.data, updated_at = now()
			`, string(kind), row.ID, row.Data)
		}
		if err := s.sendBatch(ctx, batch, len(chunk)); err != nil {
			return fmt.Errorf("upsert %s: %w", kind, err)
		}
	}
	return nil
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Export copies every entity kind from src. It returns the number of rows written.
func (s *Store) Export(ctx context.Context, src store.Store) (int, error) {
	total := 0
	for _, kind := range model.Kinds {
		var rows []Row
		err := src.Scan(ctx, kind, func(id string, data []byte) error {
			rows = append(rows, Row{ID: id, Data: append([]byte(nil), data...)})
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("scan %s: %w", kind, err)
		}
		if err := s.UpsertEntities(ctx, kind, rows); err != nil {
			return total, err
		}
		total += len(rows)
	}
	return total, nil
}

// SaveState upserts the last processed block an export reflects.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
