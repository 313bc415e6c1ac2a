// Package inmemory implements the run registry in process memory. Records
// are lost on restart; a database-backed store can replace this behind the
// same interface.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/bankflow/internal/runs"
)

// Store is an in-memory runs.Store, safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*runs.Run
}

// NewStore creates an empty in-memory run store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*runs.Run),
	}
}

// Create implements runs.Store.
func (s *Store) Create(ctx context.Context, run *runs.Run) error {
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return fmt.Errorf("run %s already exists", run.RunID)
	}

	cp := *run
	s.runs[run.RunID] = &cp
	return nil
}

// Get implements runs.Store. It returns a copy so callers cannot mutate the
// stored record.
func (s *Store) Get(ctx context.Context, runID string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", runs.ErrNotFound, runID)
	}

	cp := *run
	return &cp, nil
}

// List implements runs.Store. Results are ordered newest first.
func (s *Store) List(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*runs.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		cp := *run
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Delete implements runs.Store.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return fmt.Errorf("%w: %s", runs.ErrNotFound, runID)
	}
	delete(s.runs, runID)
	return nil
}

// Update implements runs.Store.
func (s *Store) Update(ctx context.Context, run *runs.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		return fmt.Errorf("%w: %s", runs.ErrNotFound, run.RunID)
	}

	cp := *run
	s.runs[run.RunID] = &cp
	return nil
}

var _ runs.Store = (*Store)(nil)
