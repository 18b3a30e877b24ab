package store

import (
	"context"
	"sync"

	"pose-stream-server-go/internal/domain/settings"
)

type memoryStore struct {
	mu       sync.RWMutex
	snapshot settings.Settings
	saved    bool
}

// NewMemory returns a process-local store; nothing survives a restart.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) Driver() string { return DriverMemory }

func (s *memoryStore) Load(_ context.Context) (settings.Settings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.saved, nil
}

func (s *memoryStore) Save(_ context.Context, snapshot settings.Settings) error {
	s.mu.Lock()
	s.snapshot = snapshot
	s.saved = true
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close(context.Context) error { return nil }
