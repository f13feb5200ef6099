package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. It backs tests and the import command.
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string][]Record
	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models: make(map[string][]Record),
	}
}

func (s *MemoryStore) Name() string {
	return "memory"
}

// Records returns a copy of the model's records
func (s *MemoryStore) Records(ctx context.Context, modelID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	records, ok := s.models[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, modelID)
	}

	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// Put replaces the records of a model. An empty slice registers the model with no records.
func (s *MemoryStore) Put(ctx context.Context, modelID string, records []Record) error {
	if err := checkModelID(modelID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	stored := make([]Record, len(records))
	copy(stored, records)
	s.models[modelID] = stored
	return nil
}

// Models returns the known model ids in sorted order
func (s *MemoryStore) Models(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
