package driven

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// RangeStore persists fetched offset ranges per corpus filter key.
// Stored ranges are always in merged form.
type RangeStore interface {
	// GetRanges returns the merged ranges for a filter key.
	// Returns an empty slice when nothing has been fetched.
	GetRanges(ctx context.Context, filterKey string) ([]domain.FetchedRange, error)

	// SaveRanges replaces the ranges for a filter key with their merge.
	SaveRanges(ctx context.Context, filterKey string, ranges []domain.FetchedRange) error

	// ListRanges returns the merged ranges of every known filter key.
	ListRanges(ctx context.Context) (map[string][]domain.FetchedRange, error)

	// DeleteRanges forgets the ranges of a filter key.
	DeleteRanges(ctx context.Context, filterKey string) error

	// ClearRanges forgets every filter key.
	ClearRanges(ctx context.Context) error
}
