package pipeline

import (
	"context"
	"strings"
	"sync"
)

// AudioStore keeps merged slide audio and returns a URI a transcriber or
// player can reference.
type AudioStore interface {
	Put(ctx context.Context, key string, wav []byte) (string, error)
	Delete(ctx context.Context, uri string) error
}

// MemoryStore is an AudioStore backed by a map. URIs have the form mem://<key>.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores a copy of wav under key.
func (s *MemoryStore) Put(_ context.Context, key string, wav []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), wav...)
	return "mem://" + key, nil
}

// Delete removes the object behind uri. Unknown uris are ignored.
func (s *MemoryStore) Delete(_ context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, strings.TrimPrefix(uri, "mem://"))
	return nil
}

// Get returns the object behind uri.
func (s *MemoryStore) Get(uri string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[strings.TrimPrefix(uri, "mem://")]
	return b, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
