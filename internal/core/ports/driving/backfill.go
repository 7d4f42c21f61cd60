package driving

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// BackfillProgressFunc receives progress after every committed batch.
type BackfillProgressFunc func(domain.BackfillProgress)

// BackfillScheduler computes missing vectors for cached papers.
type BackfillScheduler interface {
	// Run embeds every paper lacking a vector, in batches no larger than
	// maxBatchSize or the provider limit. Returns domain.ErrBackfillInProgress
	// if a run is active and domain.ErrEmbeddingUnavailable without a provider.
	Run(ctx context.Context, maxBatchSize int) (domain.BackfillProgress, error)

	// Cancel stops the active run after its current batch.
	Cancel() bool

	// Status returns the progress of the active or last run.
	Status() domain.BackfillProgress

	// SetProgressFunc installs a progress callback (nil disables it).
	SetProgressFunc(fn BackfillProgressFunc)
}
