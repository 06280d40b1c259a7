// Package memory provides an in-memory option store. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/covenant-network/option-layer/internal/app/domain/option"
	"github.com/covenant-network/option-layer/internal/app/storage"
)

// Store is the in-memory implementation of storage.OptionStore.
type Store struct {
	mu      sync.RWMutex
	options map[string]option.State
	retired map[string]struct{}
}

var _ storage.OptionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		options: make(map[string]option.State),
		retired: make(map[string]struct{}),
	}
}

func (s *Store) CreateOption(_ context.Context, id string, st option.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.retired[id]; gone {
		return storage.ErrRetired
	}
	if _, exists := s.options[id]; exists {
		return storage.ErrExists
	}
	s.options[id] = st.Clone()
	return nil
}

func (s *Store) GetOption(_ context.Context, id string) (option.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.options[id]
	if !ok {
		return option.State{}, storage.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *Store) UpdateOption(_ context.Context, id string, st option.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.options[id]; !ok {
		return storage.ErrNotFound
	}
	s.options[id] = st.Clone()
	return nil
}

func (s *Store) DeleteOption(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.options[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.options, id)
	s.retired[id] = struct{}{}
	return nil
}

func (s *Store) ListOptions(_ context.Context) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]storage.Record, 0, len(s.options))
	for id, st := range s.options {
		records = append(records, storage.Record{ID: id, State: st.Clone()})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}
