package ledger

import (
	"context"
	"sync"
)

// MemoryBlobStore keeps the ledger blob in process memory. Used in tests and
// for ephemeral deployments where losing pending orders on restart is
// acceptable.
type MemoryBlobStore struct {
	mu   sync.Mutex
	blob []byte
}

// NewMemoryBlobStore creates an empty in-memory store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{}
}

func (s *MemoryBlobStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob == nil {
		return nil, nil
	}
	out := make([]byte, len(s.blob))
	copy(out, s.blob)
	return out, nil
}

func (s *MemoryBlobStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = make([]byte, len(blob))
	copy(s.blob, blob)
	return nil
}

// Seed overwrites the stored blob directly, bypassing Save. Test helper for
// corrupt-blob scenarios.
func (s *MemoryBlobStore) Seed(blob []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = blob
}
