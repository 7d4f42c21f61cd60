package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
	"github.com/custodia-labs/papercache/internal/logger"
	"github.com/custodia-labs/papercache/internal/metrics"
)

// Ensure SyncCoordinator implements the interface.
var _ driving.SyncCoordinator = (*SyncCoordinator)(nil)

// DefaultSyncBatchSize is the page size used when none is configured.
const DefaultSyncBatchSize = 100

// SyncCoordinator mirrors the remote corpus into the local cache.
// It is a long-lived handle: batch size, retry policy and progress
// callback may be changed between or during sessions.
type SyncCoordinator struct {
	corpus driven.RemoteCorpus
	papers driven.PaperStore
	ranges driven.RangeStore

	mu         sync.RWMutex
	batchSize  int
	policy     domain.RetryPolicy
	progressFn driving.SyncProgressFunc
	sessions   map[string]*syncSession
}

// syncSession is the transient state of one session for one filter key.
type syncSession struct {
	progress domain.SyncProgress
	aborted  atomic.Bool
}

// NewSyncCoordinator creates a sync coordinator.
func NewSyncCoordinator(
	corpus driven.RemoteCorpus,
	papers driven.PaperStore,
	ranges driven.RangeStore,
) *SyncCoordinator {
	return &SyncCoordinator{
		corpus:    corpus,
		papers:    papers,
		ranges:    ranges,
		batchSize: DefaultSyncBatchSize,
		policy:    domain.DefaultRetryPolicy(),
		sessions:  make(map[string]*syncSession),
	}
}

// SetBatchSize changes the page size used by subsequent batches.
// Non-positive sizes restore the default.
func (c *SyncCoordinator) SetBatchSize(size int) {
	if size <= 0 {
		size = DefaultSyncBatchSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchSize = size
}

// SetRetryPolicy changes the retry policy used by subsequent batches.
func (c *SyncCoordinator) SetRetryPolicy(policy domain.RetryPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = policy
}

// SetProgressFunc installs a progress callback (nil disables it).
func (c *SyncCoordinator) SetProgressFunc(fn driving.SyncProgressFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progressFn = fn
}

// StartIncremental resumes the mirror of filter from its first gap.
func (c *SyncCoordinator) StartIncremental(
	ctx context.Context,
	filter domain.CorpusFilter,
) (domain.SyncProgress, error) {
	return c.start(ctx, filter, domain.SyncIncremental)
}

// StartFull re-walks the whole corpus slice of filter from offset zero.
// Coverage committed by earlier sessions is kept.
func (c *SyncCoordinator) StartFull(
	ctx context.Context,
	filter domain.CorpusFilter,
) (domain.SyncProgress, error) {
	return c.start(ctx, filter, domain.SyncFull)
}

// Abort requests cancellation of the running session for filter.
func (c *SyncCoordinator) Abort(filter domain.CorpusFilter) bool {
	key := filter.Key()

	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.sessions[key]
	if !ok || session.progress.State != domain.SyncRunning {
		return false
	}
	session.aborted.Store(true)
	logger.Info("Abort requested for %s", key)
	return true
}

// Status returns the progress of the current or last session for filter.
func (c *SyncCoordinator) Status(filter domain.CorpusFilter) domain.SyncProgress {
	key := filter.Key()

	c.mu.RLock()
	defer c.mu.RUnlock()

	if session, ok := c.sessions[key]; ok {
		return session.progress
	}
	return domain.SyncProgress{FilterKey: key, State: domain.SyncIdle}
}

// start runs one session to a terminal state.
//
//nolint:gocyclo // Session loop with necessary sequential steps
func (c *SyncCoordinator) start(
	ctx context.Context,
	filter domain.CorpusFilter,
	mode domain.SyncMode,
) (domain.SyncProgress, error) {
	filter = filter.Normalized()
	if err := filter.Validate(); err != nil {
		return domain.SyncProgress{FilterKey: filter.Key(), State: domain.SyncIdle}, err
	}

	session, err := c.begin(filter.Key(), mode)
	if err != nil {
		return c.Status(filter), err
	}
	key := session.progress.FilterKey
	log := logger.Zap().With(zap.String("filter", key), zap.String("mode", string(mode)))

	logger.Section("Sync " + key)
	logger.Info("Starting %s sync for %s", mode, key)

	total, err := retryBatch(ctx, c.retryPolicy(), func() (int, error) {
		return c.corpus.Count(ctx, filter)
	}, c.notifyRetry(log, "count"))
	if err != nil {
		if ctx.Err() != nil {
			return c.finish(session, domain.SyncAborted, nil), nil
		}
		return c.finish(session, domain.SyncFailed, fmt.Errorf("count corpus: %w", err)), err
	}

	stored, err := c.ranges.GetRanges(ctx, key)
	if err != nil {
		err = fmt.Errorf("load fetched ranges: %w", err)
		return c.finish(session, domain.SyncFailed, err), err
	}

	// Planning ranges decide what to fetch; persisted ranges only grow.
	persisted := domain.MergeRanges(stored)
	planning := persisted
	if mode == domain.SyncFull {
		planning = []domain.FetchedRange{}
	}

	c.update(session, func(p *domain.SyncProgress) {
		p.Total = total
		p.Remaining = remainingOffsets(planning, total)
	})

	for {
		if session.aborted.Load() || ctx.Err() != nil {
			return c.finish(session, domain.SyncAborted, nil), nil
		}

		batchSize := c.currentBatchSize()
		start := domain.NextStartToRequest(planning, total, batchSize)
		if total <= 0 || start >= total {
			return c.finish(session, domain.SyncCompleted, nil), nil
		}
		gap := domain.GapSize(planning, total, start)
		if gap <= 0 {
			return c.finish(session, domain.SyncCompleted, nil), nil
		}
		limit := min(batchSize, gap)

		log.Debug("fetching batch", zap.Int("offset", start), zap.Int("limit", limit))
		page, err := retryBatch(ctx, c.retryPolicy(), func() (driven.Page, error) {
			return c.fetchPage(ctx, filter, start, limit)
		}, c.notifyRetry(log, "fetch"))
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(session, domain.SyncAborted, nil), nil
			}
			metrics.SyncBatchesTotal.WithLabelValues(metrics.StatusFailed).Inc()
			err = fmt.Errorf("fetch [%d,%d): %w", start, start+limit, err)
			return c.finish(session, domain.SyncFailed, err), err
		}

		received := len(page.Papers)
		if received == 0 {
			logger.Info("Corpus returned no papers at offset %d, ending session", start)
			return c.finish(session, domain.SyncCompleted, nil), nil
		}

		// The fetched page is committed even if cancellation arrived mid-fetch.
		commitCtx := context.WithoutCancel(ctx)
		if err := c.papers.UpsertMany(commitCtx, page.Papers); err != nil {
			err = fmt.Errorf("store batch at %d: %w", start, err)
			return c.finish(session, domain.SyncFailed, err), err
		}

		fetched := domain.FetchedRange{Start: start, End: start + received}
		planning = domain.MergeRanges(append(planning, fetched))
		persisted = domain.MergeRanges(append(persisted, fetched))
		if err := c.ranges.SaveRanges(commitCtx, key, persisted); err != nil {
			err = fmt.Errorf("save fetched ranges: %w", err)
			return c.finish(session, domain.SyncFailed, err), err
		}

		if page.Total > 0 {
			total = page.Total
		}

		metrics.SyncBatchesTotal.WithLabelValues(metrics.StatusOK).Inc()
		metrics.SyncDocumentsTotal.Add(float64(received))

		c.update(session, func(p *domain.SyncProgress) {
			p.Fetched += received
			p.Batches++
			p.LastOffset = fetched.End
			p.Total = total
			p.Remaining = remainingOffsets(planning, total)
		})
		log.Debug("committed batch", zap.Stringer("range", fetched), zap.Int("total", total))
	}
}

// fetchPage fetches one page and validates it against the request.
func (c *SyncCoordinator) fetchPage(
	ctx context.Context,
	filter domain.CorpusFilter,
	offset, limit int,
) (driven.Page, error) {
	page, err := c.corpus.FetchPage(ctx, filter, offset, limit)
	if err != nil {
		return driven.Page{}, err
	}
	if len(page.Papers) > limit {
		return driven.Page{}, fmt.Errorf("%w: requested %d papers, received %d",
			domain.ErrMalformedResponse, limit, len(page.Papers))
	}
	for i := range page.Papers {
		if page.Papers[i].ID == "" {
			return driven.Page{}, fmt.Errorf("%w: paper at offset %d has no ID",
				domain.ErrMalformedResponse, offset+i)
		}
	}
	return page, nil
}

// begin registers a running session for key.
func (c *SyncCoordinator) begin(key string, mode domain.SyncMode) (*syncSession, error) {
	c.mu.Lock()
	if existing, ok := c.sessions[key]; ok && existing.progress.State == domain.SyncRunning {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, key)
	}

	session := &syncSession{
		progress: domain.SyncProgress{
			FilterKey: key,
			Mode:      mode,
			State:     domain.SyncRunning,
			StartedAt: time.Now(),
		},
	}
	c.sessions[key] = session
	snapshot, fn := session.progress, c.progressFn
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return session, nil
}

// update mutates session progress and reports it.
func (c *SyncCoordinator) update(session *syncSession, mutate func(*domain.SyncProgress)) domain.SyncProgress {
	c.mu.Lock()
	mutate(&session.progress)
	snapshot, fn := session.progress, c.progressFn
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return snapshot
}

// finish moves the session to a terminal state.
func (c *SyncCoordinator) finish(session *syncSession, state domain.SyncState, err error) domain.SyncProgress {
	progress := c.update(session, func(p *domain.SyncProgress) {
		p.State = state
		p.EndedAt = time.Now()
		if err != nil {
			p.LastError = err.Error()
		}
	})

	switch state {
	case domain.SyncFailed:
		logger.Warn("Sync %s failed after %d papers: %v", progress.FilterKey, progress.Fetched, err)
	case domain.SyncAborted:
		logger.Info("Sync %s aborted after %d papers", progress.FilterKey, progress.Fetched)
	default:
		logger.Info("Sync %s complete: %d papers in %d batches", progress.FilterKey, progress.Fetched, progress.Batches)
	}
	return progress
}

func (c *SyncCoordinator) currentBatchSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batchSize
}

func (c *SyncCoordinator) retryPolicy() domain.RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

func (c *SyncCoordinator) notifyRetry(log *zap.Logger, op string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		metrics.SyncBatchesTotal.WithLabelValues(metrics.StatusRetried).Inc()
		if errors.Is(err, domain.ErrRateLimited) {
			log.Warn("rate limited, backing off", zap.String("op", op), zap.Duration("wait", wait))
			return
		}
		log.Warn("retrying", zap.String("op", op), zap.Error(err), zap.Duration("wait", wait))
	}
}

// remainingOffsets counts offsets in [0, total) not covered by ranges.
func remainingOffsets(ranges []domain.FetchedRange, total int) int {
	if total <= 0 {
		return 0
	}
	covered := 0
	for _, r := range domain.MergeRanges(ranges) {
		if r.Start >= total {
			break
		}
		covered += min(r.End, total) - r.Start
	}
	return total - covered
}
