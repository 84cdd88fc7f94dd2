package ledger

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBlobStore persists the ledger blob under a single Redis key.
type RedisBlobStore struct {
	client *redis.Client
	key    string
}

// NewRedisBlobStore creates a Redis-backed store under BlobKey.
func NewRedisBlobStore(client *redis.Client) *RedisBlobStore {
	return &RedisBlobStore{
		client: client,
		key:    BlobKey,
	}
}

func (s *RedisBlobStore) Load(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return blob, nil
}

func (s *RedisBlobStore) Save(ctx context.Context, blob []byte) error {
	// Pending orders have no natural expiry; the ledger removes entries
	// itself once the backend confirms them.
	return s.client.Set(ctx, s.key, blob, 0).Err()
}
