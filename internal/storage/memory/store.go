// Package memory provides an in-memory artifact store for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Store keeps saved objects in a map keyed by object path.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Save records the object and returns a mem:// URI.
func (s *Store) Save(ctx context.Context, objectPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[objectPath] = buf
	return "mem://" + objectPath, nil
}

// Get returns a stored object's bytes.
func (s *Store) Get(objectPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectPath]
	return data, ok
}

// Paths lists every stored object path.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	return paths
}
