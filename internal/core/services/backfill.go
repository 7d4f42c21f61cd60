package services

import (
	"context"
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

// Ensure Backfiller implements the interface.
var _ driving.BackfillScheduler = (*Backfiller)(nil)

// DefaultEmbeddingBatchSize is used when the provider reports no limit.
const DefaultEmbeddingBatchSize = 20

// Backfiller computes vectors for cached papers that lack one.
// Only one run may be active at a time; cancellation takes effect
// between batches so a request is never abandoned mid-flight.
type Backfiller struct {
	papers   driven.PaperStore
	embedder driven.EmbeddingService

	mu         sync.RWMutex
	running    bool
	progress   domain.BackfillProgress
	policy     domain.RetryPolicy
	progressFn driving.BackfillProgressFunc
	cancelled  atomic.Bool
}

// NewBackfiller creates a backfiller. embedder may be nil, in which case
// Run returns domain.ErrEmbeddingUnavailable.
func NewBackfiller(papers driven.PaperStore, embedder driven.EmbeddingService) *Backfiller {
	return &Backfiller{
		papers:   papers,
		embedder: embedder,
		policy:   domain.DefaultRetryPolicy(),
	}
}

// SetRetryPolicy changes the retry policy used for provider calls.
func (b *Backfiller) SetRetryPolicy(policy domain.RetryPolicy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policy = policy
}

// SetProgressFunc installs a progress callback (nil disables it).
func (b *Backfiller) SetProgressFunc(fn driving.BackfillProgressFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progressFn = fn
}

// Cancel stops the active run after its current batch.
func (b *Backfiller) Cancel() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		return false
	}
	b.cancelled.Store(true)
	return true
}

// Status returns the progress of the active or last run.
func (b *Backfiller) Status() domain.BackfillProgress {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return clampCompleted(b.progress)
}

// Run embeds every paper lacking a vector.
func (b *Backfiller) Run(ctx context.Context, maxBatchSize int) (domain.BackfillProgress, error) {
	if b.embedder == nil {
		return domain.BackfillProgress{}, domain.ErrEmbeddingUnavailable
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return b.Status(), domain.ErrBackfillInProgress
	}
	b.running = true
	b.cancelled.Store(false)
	b.progress = domain.BackfillProgress{Running: true, StartedAt: time.Now()}
	policy := b.policy
	b.mu.Unlock()

	total, err := b.papers.CountMissingVector(ctx)
	if err != nil {
		err = fmt.Errorf("count papers without vectors: %w", err)
		return b.finish(err), err
	}
	b.update(func(p *domain.BackfillProgress) { p.Total = total })

	batchSize := b.batchSize(maxBatchSize)
	dims := b.embedder.Dimensions()
	log := logger.Zap().With(zap.String("model", b.embedder.ModelName()), zap.Int("batch_size", batchSize))

	logger.Section("Embedding backfill")
	logger.Info("Backfilling %d papers in batches of %d", total, batchSize)

	for {
		if b.cancelled.Load() || ctx.Err() != nil {
			b.update(func(p *domain.BackfillProgress) { p.Cancelled = true })
			logger.Info("Backfill cancelled")
			return b.finish(nil), nil
		}

		batch, err := b.papers.ListMissingVector(ctx, batchSize)
		if err != nil {
			err = fmt.Errorf("list papers without vectors: %w", err)
			return b.finish(err), err
		}
		if len(batch) == 0 {
			return b.finish(nil), nil
		}

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].EmbeddingText(b.embedder.MaxTextLength())
		}

		resp, err := retryBatch(ctx, policy, func() (driven.EmbeddingBatch, error) {
			return b.embed(ctx, texts, dims)
		}, func(err error, wait time.Duration) {
			log.Warn("retrying embedding batch", zap.Error(err), zap.Duration("wait", wait))
		})
		if err != nil {
			if ctx.Err() != nil {
				b.update(func(p *domain.BackfillProgress) { p.Cancelled = true })
				return b.finish(nil), nil
			}
			metrics.BackfillDocumentsTotal.WithLabelValues(metrics.StatusFailed).Add(float64(len(batch)))
			b.update(func(p *domain.BackfillProgress) { p.Failed += len(batch) })
			err = fmt.Errorf("embed batch of %d: %w", len(batch), err)
			return b.finish(err), err
		}
		metrics.EmbeddingRequestDuration.WithLabelValues(resp.Model).Observe(resp.Latency.Seconds())

		vectors := make(map[string][]float32, len(batch))
		for i := range batch {
			vectors[batch[i].ID] = resp.Vectors[i]
		}
		if err := b.papers.SetEmbeddings(context.WithoutCancel(ctx), vectors); err != nil {
			err = fmt.Errorf("store vectors: %w", err)
			return b.finish(err), err
		}

		metrics.BackfillDocumentsTotal.WithLabelValues(metrics.StatusOK).Add(float64(len(batch)))
		progress := b.update(func(p *domain.BackfillProgress) {
			p.Completed += len(batch)
			p.Batches++
		})
		log.Debug("committed embedding batch",
			zap.Int("completed", progress.Completed), zap.Int("total", progress.Total))
	}
}

// embed calls the provider once and validates the response shape.
func (b *Backfiller) embed(ctx context.Context, texts []string, dims int) (driven.EmbeddingBatch, error) {
	resp, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return driven.EmbeddingBatch{}, err
	}
	if len(resp.Vectors) != len(texts) {
		return driven.EmbeddingBatch{}, fmt.Errorf("%w: %d vectors for %d texts",
			domain.ErrMalformedResponse, len(resp.Vectors), len(texts))
	}
	for i, vec := range resp.Vectors {
		if len(vec) == 0 || (dims > 0 && len(vec) != dims) {
			return driven.EmbeddingBatch{}, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				domain.ErrMalformedResponse, i, len(vec), dims)
		}
		for _, x := range vec {
			if !finite(float64(x)) {
				return driven.EmbeddingBatch{}, fmt.Errorf("%w: vector %d has a non-finite component",
					domain.ErrMalformedResponse, i)
			}
		}
	}
	return resp, nil
}

// batchSize caps the requested size at the provider limit.
func (b *Backfiller) batchSize(requested int) int {
	limit := b.embedder.MaxBatchSize()
	if limit <= 0 {
		limit = DefaultEmbeddingBatchSize
	}
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

// update mutates progress and reports a clamped snapshot.
func (b *Backfiller) update(mutate func(*domain.BackfillProgress)) domain.BackfillProgress {
	b.mu.Lock()
	mutate(&b.progress)
	snapshot, fn := b.progress, b.progressFn
	b.mu.Unlock()

	snapshot = clampCompleted(snapshot)
	if fn != nil {
		fn(snapshot)
	}
	return snapshot
}

// clampCompleted keeps reported progress within the count fixed at start.
func clampCompleted(p domain.BackfillProgress) domain.BackfillProgress {
	if p.Completed > p.Total {
		p.Completed = p.Total
	}
	return p
}

// finish ends the run.
func (b *Backfiller) finish(err error) domain.BackfillProgress {
	progress := b.update(func(p *domain.BackfillProgress) {
		p.Running = false
		p.EndedAt = time.Now()
		if err != nil {
			p.LastError = err.Error()
		}
	})

	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	if err != nil {
		logger.Warn("Backfill stopped after %d/%d papers: %v", progress.Completed, progress.Total, err)
	} else {
		logger.Info("Backfill finished: %d/%d papers in %d batches", progress.Completed, progress.Total, progress.Batches)
	}
	return progress
}
