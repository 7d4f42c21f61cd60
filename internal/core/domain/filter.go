package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// filterDateLayout is the date format used in filter keys.
const filterDateLayout = "2006-01-02"

// CorpusFilter selects the slice of the remote corpus mirrored by one
// logical sync session. Offsets are only comparable between sessions that
// share the same filter.
type CorpusFilter struct {
	// Categories restricts the corpus to these category tags.
	Categories []string

	// From is the inclusive lower bound on publication time (zero = open).
	From time.Time

	// To is the inclusive upper bound on publication time (zero = open).
	To time.Time
}

// Normalized returns a copy with trimmed, de-duplicated and sorted categories.
func (f CorpusFilter) Normalized() CorpusFilter {
	seen := make(map[string]struct{}, len(f.Categories))
	cats := make([]string, 0, len(f.Categories))
	for _, c := range f.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return CorpusFilter{Categories: cats, From: f.From, To: f.To}
}

// Validate checks the filter is usable for sync.
func (f CorpusFilter) Validate() error {
	if len(f.Normalized().Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidInput)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return fmt.Errorf("%w: time window ends before it starts", ErrInvalidInput)
	}
	return nil
}

// Key returns the canonical identifier of the filter. Two filters that
// select the same corpus slice produce the same key regardless of
// category order or duplicates.
func (f CorpusFilter) Key() string {
	n := f.Normalized()
	return fmt.Sprintf("%s|%s..%s", strings.Join(n.Categories, ","), formatBound(n.From), formatBound(n.To))
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.UTC().Format(filterDateLayout)
}
