package driven

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// PaperStore is the local paper cache.
// Writes are visible to subsequent reads as soon as they return.
type PaperStore interface {
	// UpsertOne inserts or updates a paper keyed by ID.
	// Metadata fields are overwritten; a nil Embedding preserves any stored vector.
	UpsertOne(ctx context.Context, paper *domain.Paper) error

	// UpsertMany upserts all papers in a single transaction: either every
	// paper is written or none is.
	UpsertMany(ctx context.Context, papers []domain.Paper) error

	// Get retrieves a paper by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Paper, error)

	// Delete removes a paper and its vector. Deleting an unknown ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Clear removes every cached paper.
	Clear(ctx context.Context) error

	// ListByPublishedDesc returns papers newest first.
	ListByPublishedDesc(ctx context.Context, limit, offset int) ([]domain.Paper, error)

	// ListMissingVector returns up to limit papers without a vector,
	// newest first.
	ListMissingVector(ctx context.Context, limit int) ([]domain.Paper, error)

	// ListWithVectors returns every paper that has a vector.
	ListWithVectors(ctx context.Context) ([]domain.Paper, error)

	// SetEmbeddings writes vectors for the given paper IDs in one
	// transaction. Unknown IDs are ignored. Metadata is left untouched.
	SetEmbeddings(ctx context.Context, vectors map[string][]float32) error

	// Count returns the number of cached papers.
	Count(ctx context.Context) (int, error)

	// CountMissingVector returns the number of papers without a vector.
	CountMissingVector(ctx context.Context) (int, error)
}

// AnnotationStore persists user-side data attached to papers.
type AnnotationStore interface {
	// SaveSummary stores or replaces the summary for a paper and language.
	SaveSummary(ctx context.Context, summary *domain.Summary) error

	// GetSummary returns the summary for a paper and language.
	// Returns domain.ErrNotFound if none exists.
	GetSummary(ctx context.Context, paperID, language string) (*domain.Summary, error)

	// RecordInteraction appends an interaction.
	RecordInteraction(ctx context.Context, interaction *domain.Interaction) error

	// ListInteractions returns interactions for a paper, newest first.
	ListInteractions(ctx context.Context, paperID string) ([]domain.Interaction, error)
}

// HistoryStore persists the search audit trail.
type HistoryStore interface {
	// AppendSearchHistory stores a search record. Records are never updated.
	AppendSearchHistory(ctx context.Context, record *domain.SearchHistoryRecord) error

	// ListSearchHistory returns the most recent records, newest first.
	ListSearchHistory(ctx context.Context, limit int) ([]domain.SearchHistoryRecord, error)
}
