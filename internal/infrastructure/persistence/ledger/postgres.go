package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBlobStore persists the ledger blob as a single row, keyed by
// BlobKey. Row-level storage of individual orders would also satisfy the
// contract; a one-row upsert keeps the save atomic without a transaction.
type PostgresBlobStore struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresBlobStore creates a Postgres-backed store under BlobKey.
func NewPostgresBlobStore(pool *pgxpool.Pool) *PostgresBlobStore {
	return &PostgresBlobStore{
		pool: pool,
		key:  BlobKey,
	}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresBlobStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pending_order_blobs (
			key        TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create pending_order_blobs: %w", err)
	}
	return nil
}

func (s *PostgresBlobStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM pending_order_blobs WHERE key = $1`, s.key,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ledger blob: %w", err)
	}
	return blob, nil
}

func (s *PostgresBlobStore) Save(ctx context.Context, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_order_blobs (key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = $2, updated_at = now()`,
		s.key, blob,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger blob: %w", err)
	}
	return nil
}
