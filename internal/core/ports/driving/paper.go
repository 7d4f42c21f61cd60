package driving

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// PaperService manages cached papers and their annotations.
type PaperService interface {
	// Get retrieves a paper by ID.
	Get(ctx context.Context, id string) (*domain.Paper, error)

	// List returns cached papers newest first.
	List(ctx context.Context, limit, offset int) ([]domain.Paper, error)

	// Delete removes a paper from the cache.
	Delete(ctx context.Context, id string) error

	// Clear removes every cached paper and forgets all fetched ranges.
	Clear(ctx context.Context) error

	// Stats summarises the cache.
	Stats(ctx context.Context) (*CacheStats, error)

	// SetSummary stores a summary written by the user.
	SetSummary(ctx context.Context, paperID, language, content string) (*domain.Summary, error)

	// GenerateSummary summarises a paper with the configured language model
	// and stores the result.
	GenerateSummary(ctx context.Context, paperID, language string) (*domain.Summary, error)

	// GetSummary returns a stored summary.
	GetSummary(ctx context.Context, paperID, language string) (*domain.Summary, error)

	// Interact records a user interaction with a paper.
	Interact(ctx context.Context, paperID string, kind domain.InteractionKind) (*domain.Interaction, error)

	// Interactions lists interactions with a paper, newest first.
	Interactions(ctx context.Context, paperID string) ([]domain.Interaction, error)

	// Open opens the paper in the default browser and records a view.
	Open(ctx context.Context, paperID string) error
}

// CacheStats summarises the local cache.
type CacheStats struct {
	// Papers is the number of cached papers.
	Papers int

	// MissingVectors is the number of papers awaiting backfill.
	MissingVectors int

	// Ranges holds the merged fetched ranges per filter key.
	Ranges map[string][]domain.FetchedRange
}
