package storage

import (
	"context"
	"sync"

	"contas/internal/core"
)

// MemoryStore keeps the snapshot in process memory. It is the default
// backend for development runs and the workhorse for tests.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return core.Snapshot{}, nil
	}
	return DecodeSnapshot(s.data)
}

func (s *MemoryStore) Save(_ context.Context, snap core.Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
