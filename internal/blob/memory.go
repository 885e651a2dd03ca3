package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in process memory. It backs tests and local runs
// where no bucket is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, content []byte, originalName, _ string) (string, error) {
	objectName := NewObjectName(originalName)

	data := make([]byte, len(content))
	copy(data, content)

	s.mu.Lock()
	s.objects[objectName] = data
	s.mu.Unlock()
	return objectName, nil
}

func (s *MemoryStore) Get(_ context.Context, objectName string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.objects[objectName]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectName]; !ok {
		return ErrNotFound
	}
	delete(s.objects, objectName)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, objectName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[objectName]
	return ok, nil
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
