package driven

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// RemoteCorpus is the remote, paginated paper collection being mirrored.
// Offsets are positions in the filter's result ordering; the total may
// change between calls.
type RemoteCorpus interface {
	// Count returns the current total number of papers matching filter.
	Count(ctx context.Context, filter domain.CorpusFilter) (int, error)

	// FetchPage returns up to limit papers starting at offset.
	// A page with fewer papers than requested (including none) is valid.
	FetchPage(ctx context.Context, filter domain.CorpusFilter, offset, limit int) (Page, error)
}

// Page is one slice of the remote corpus.
type Page struct {
	// Papers in corpus order starting at the requested offset.
	Papers []domain.Paper

	// Total is the corpus size reported alongside the page.
	Total int
}
