// Package memory is an in-process content store.
package memory

import (
	"bytes"
	"context"
	"sync"

	"arkv/internal/storage"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	content map[string][]byte
}

func New() *InMemoryStore {
	return &InMemoryStore{content: make(map[string][]byte)}
}

// Put stores data under its CID. Storing the same bytes twice is a no-op.
func (s *InMemoryStore) Put(_ context.Context, data []byte, _ map[string]string) (string, error) {
	c, err := storage.ContentID(data)
	if err != nil {
		return "", err
	}
	key := c.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.content[key]; !ok {
		s.content[key] = bytes.Clone(data)
	}
	return key, nil
}

func (s *InMemoryStore) Get(_ context.Context, contentID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.content[contentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(data), nil
}
