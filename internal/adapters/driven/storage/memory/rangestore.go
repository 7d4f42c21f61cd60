package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// Ensure RangeStore implements the interface.
var _ driven.RangeStore = (*RangeStore)(nil)

// RangeStore is an in-memory implementation of driven.RangeStore.
type RangeStore struct {
	mu     sync.RWMutex
	ranges map[string][]domain.FetchedRange
}

// NewRangeStore creates a new in-memory range store.
func NewRangeStore() *RangeStore {
	return &RangeStore{
		ranges: make(map[string][]domain.FetchedRange),
	}
}

// GetRanges returns the merged ranges for a filter key.
func (s *RangeStore) GetRanges(_ context.Context, filterKey string) ([]domain.FetchedRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.FetchedRange{}, s.ranges[filterKey]...), nil
}

// SaveRanges replaces the ranges for a filter key with their merge.
func (s *RangeStore) SaveRanges(_ context.Context, filterKey string, ranges []domain.FetchedRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[filterKey] = domain.MergeRanges(ranges)
	return nil
}

// ListRanges returns the ranges of every filter key.
func (s *RangeStore) ListRanges(_ context.Context) (map[string][]domain.FetchedRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string][]domain.FetchedRange, len(s.ranges))
	for key, ranges := range s.ranges {
		result[key] = append([]domain.FetchedRange{}, ranges...)
	}
	return result, nil
}

// DeleteRanges forgets the ranges of a filter key.
func (s *RangeStore) DeleteRanges(_ context.Context, filterKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ranges, filterKey)
	return nil
}

// ClearRanges forgets every filter key.
func (s *RangeStore) ClearRanges(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges = make(map[string][]domain.FetchedRange)
	return nil
}
