package store

import "sync"

// Store persists named JSON-shaped blobs: strategy parameters and
// variables. The core never imposes a schema beyond string keys; a
// missing name loads as an empty map, not an error.
type Store interface {
	LoadJSON(name string) (map[string]any, error)
	SaveJSON(name string, data map[string]any) error
	Close() error
}

// Memory is an in-process store for tests and ephemeral runs.
type Memory struct {
	mu    sync.Mutex
	blobs map[string]map[string]any
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]map[string]any)}
}

func (s *Memory) LoadJSON(name string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.blobs[name]))
	for k, v := range s.blobs[name] {
		out[k] = v
	}
	return out, nil
}

func (s *Memory) SaveJSON(name string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := make(map[string]any, len(data))
	for k, v := range data {
		blob[k] = v
	}
	s.blobs[name] = blob
	return nil
}

func (s *Memory) Close() error { return nil }
