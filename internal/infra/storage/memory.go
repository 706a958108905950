package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemorySignatureStore keeps signature images in process memory. It backs
// local development and tests when no object store is configured.
type MemorySignatureStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemorySignatureStore() *MemorySignatureStore {
	return &MemorySignatureStore{objects: make(map[string][]byte)}
}

func (s *MemorySignatureStore) Put(_ context.Context, dealID string, image []byte) (string, error) {
	key := fmt.Sprintf("signatures/%s/%s.png", dealID, uuid.New())
	stored := make([]byte, len(image))
	copy(stored, image)
	s.mu.Lock()
	s.objects[key] = stored
	s.mu.Unlock()
	return key, nil
}

func (s *MemorySignatureStore) PresignGet(_ context.Context, ref string) (string, error) {
	s.mu.Lock()
	_, ok := s.objects[ref]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown signature ref %s", ref)
	}
	return "memory://" + ref, nil
}

// Get returns the stored bytes; tests use it to assert what was written.
func (s *MemorySignatureStore) Get(ref string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[ref]
	return data, ok
}
