package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// ==================== Range Store ====================

// rangeStore implements driven.RangeStore.
type rangeStore struct {
	store *Store
}

var _ driven.RangeStore = (*rangeStore)(nil)

// GetRanges returns the merged ranges for a filter key.
func (s *rangeStore) GetRanges(ctx context.Context, filterKey string) ([]domain.FetchedRange, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT start_offset, end_offset FROM fetched_ranges
		WHERE filter_key = ?
		ORDER BY start_offset
	`, filterKey)
	if err != nil {
		return nil, fmt.Errorf("querying ranges: %w", err)
	}
	defer rows.Close()

	ranges := make([]domain.FetchedRange, 0)
	for rows.Next() {
		var r domain.FetchedRange
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("scanning range: %w", err)
		}
		ranges = append(ranges, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ranges: %w", err)
	}
	return ranges, nil
}

// SaveRanges replaces the ranges for a filter key with their merge in
// one transaction.
func (s *rangeStore) SaveRanges(ctx context.Context, filterKey string, ranges []domain.FetchedRange) error {
	merged := domain.MergeRanges(ranges)

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM fetched_ranges WHERE filter_key = ?", filterKey); err != nil {
		return fmt.Errorf("clearing ranges: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fetched_ranges (filter_key, start_offset, end_offset) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range merged {
		if _, err := stmt.ExecContext(ctx, filterKey, r.Start, r.End); err != nil {
			return fmt.Errorf("saving range: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListRanges returns the merged ranges of every known filter key.
func (s *rangeStore) ListRanges(ctx context.Context) (map[string][]domain.FetchedRange, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT filter_key, start_offset, end_offset FROM fetched_ranges
		ORDER BY filter_key, start_offset
	`)
	if err != nil {
		return nil, fmt.Errorf("querying ranges: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.FetchedRange)
	for rows.Next() {
		var key string
		var r domain.FetchedRange
		if err := rows.Scan(&key, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("scanning range: %w", err)
		}
		result[key] = append(result[key], r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ranges: %w", err)
	}
	return result, nil
}

// DeleteRanges forgets the ranges of a filter key.
func (s *rangeStore) DeleteRanges(ctx context.Context, filterKey string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM fetched_ranges WHERE filter_key = ?", filterKey); err != nil {
		return fmt.Errorf("deleting ranges: %w", err)
	}
	return nil
}

// ClearRanges forgets every filter key.
func (s *rangeStore) ClearRanges(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM fetched_ranges"); err != nil {
		return fmt.Errorf("clearing ranges: %w", err)
	}
	return nil
}
