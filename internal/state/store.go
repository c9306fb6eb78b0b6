package state

import (
	"context"
	"sync"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

// Store persists the managed position between process runs.
type Store interface {
	Load(ctx context.Context) (model.Position, bool, error)
	Save(ctx context.Context, pos model.Position) error
}

// MemoryStore keeps the position for the lifetime of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	pos   model.Position
	saved bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (model.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return model.Position{}, false, nil
	}
	return s.pos.Clone(), true, nil
}

func (s *MemoryStore) Save(ctx context.Context, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos.Clone()
	s.saved = true
	return nil
}
