package driving

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// SearchService provides semantic search over the local cache.
type SearchService interface {
	// Search expands the query, ranks cached vectors against it and
	// records the search in history.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchOutcome, error)

	// History returns the most recent searches, newest first.
	History(ctx context.Context, limit int) ([]domain.SearchHistoryRecord, error)
}
