package driving

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// SyncProgressFunc receives progress after every committed batch and on
// every state change.
type SyncProgressFunc func(domain.SyncProgress)

// SyncCoordinator mirrors the remote corpus into the local cache.
// One session may run per corpus filter at a time.
type SyncCoordinator interface {
	// StartIncremental resumes from the first unfetched offset and runs
	// until coverage reaches the corpus total, the session is aborted, or
	// a batch fails permanently. Returns domain.ErrSyncInProgress when a
	// session for the same filter is running. Abort is not an error.
	StartIncremental(ctx context.Context, filter domain.CorpusFilter) (domain.SyncProgress, error)

	// StartFull re-walks the whole corpus slice from offset zero.
	StartFull(ctx context.Context, filter domain.CorpusFilter) (domain.SyncProgress, error)

	// Abort requests cancellation of the session for filter.
	// The in-flight batch completes and is committed. Returns false if no
	// session is running.
	Abort(filter domain.CorpusFilter) bool

	// Status returns the progress of the current or last session for filter.
	Status(filter domain.CorpusFilter) domain.SyncProgress

	// SetBatchSize changes the page size used by subsequent batches.
	SetBatchSize(size int)

	// SetRetryPolicy changes the retry policy used by subsequent batches.
	SetRetryPolicy(policy domain.RetryPolicy)

	// SetProgressFunc installs a progress callback (nil disables it).
	SetProgressFunc(fn SyncProgressFunc)
}
