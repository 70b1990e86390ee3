package ledger

import (
	"context"
	"sync"

	"budget/internal/core"
)

// MemoryStore keeps entries in two slices, one per category.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[core.Category][]core.Entry
}

// Compile-time check: ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[core.Category][]core.Entry{
			core.Income:  {},
			core.Expense: {},
		},
	}
}

func (s *MemoryStore) Insert(_ context.Context, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Category] = append(s.entries[e.Category], e)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, category core.Category, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[category]
	idx := -1
	for i, e := range list {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	s.entries[category] = append(list[:idx:idx], list[idx+1:]...)
	return true, nil
}

// List returns a copy so callers cannot modify internal state.
func (s *MemoryStore) List(_ context.Context, category core.Category) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Entry, len(s.entries[category]))
	copy(out, s.entries[category])
	return out, nil
}
