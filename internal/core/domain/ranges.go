package domain

import (
	"fmt"
	"sort"
)

// FetchedRange is a half-open interval [Start, End) of corpus offsets that
// has been fetched and committed to the local cache.
type FetchedRange struct {
	Start int
	End   int
}

// Len returns the number of offsets covered by the range.
func (r FetchedRange) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// String formats the range as [start,end).
func (r FetchedRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// MergeRanges returns the canonical merge of ranges: sorted by Start,
// with every overlapping or touching pair folded into one interval.
// Empty or inverted ranges are dropped. The input is not modified, and
// merging an already merged list returns an equal list.
func MergeRanges(ranges []FetchedRange) []FetchedRange {
	sorted := make([]FetchedRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Len() > 0 {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return []FetchedRange{}
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []FetchedRange{sorted[0]}
	for _, next := range sorted[1:] {
		last := &merged[len(merged)-1]
		if next.Start <= last.End {
			if next.End > last.End {
				last.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// NextStartToRequest returns the offset the next fetch should start at.
//
// Gaps are filled before the frontier is extended: the first offset not
// covered by any range is returned. When coverage is contiguous from zero
// the end of that coverage is returned, even if it is at or beyond
// totalKnown; the caller decides whether to stop. batchSize is advisory
// and does not affect the result.
func NextStartToRequest(ranges []FetchedRange, totalKnown, batchSize int) int {
	if totalKnown <= 0 || len(ranges) == 0 {
		return 0
	}

	pos := 0
	for _, r := range MergeRanges(ranges) {
		if pos < r.Start {
			return pos
		}
		if r.End > pos {
			pos = r.End
		}
	}
	return pos
}

// GapSize returns how many consecutive uncovered offsets follow
// currentStart, bounded by totalKnown.
//
// When currentStart lies inside or on the boundary of a merged range, the
// gap is measured from that range's end, so gaps are relative to
// contiguous coverage rather than to the raw cursor.
func GapSize(ranges []FetchedRange, totalKnown, currentStart int) int {
	if totalKnown <= 0 || currentStart >= totalKnown {
		return 0
	}
	if currentStart < 0 {
		currentStart = 0
	}

	merged := MergeRanges(ranges)
	from := currentStart
	for _, r := range merged {
		if r.Start <= from && from <= r.End {
			from = r.End
		}
	}

	end := totalKnown
	for _, r := range merged {
		if r.Start > from {
			if r.Start < end {
				end = r.Start
			}
			break
		}
	}

	if from >= end {
		return 0
	}
	return end - from
}

// CoveredCount returns the number of distinct offsets covered by ranges.
func CoveredCount(ranges []FetchedRange) int {
	total := 0
	for _, r := range MergeRanges(ranges) {
		total += r.Len()
	}
	return total
}

// Frontier returns the end of contiguous coverage starting at offset zero.
func Frontier(ranges []FetchedRange) int {
	merged := MergeRanges(ranges)
	if len(merged) == 0 || merged[0].Start > 0 {
		return 0
	}
	return merged[0].End
}
