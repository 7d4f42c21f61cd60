package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
	"github.com/custodia-labs/papercache/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is the number of results kept per task.
const historyKeep = 100

// Scheduler runs paper sync and embedding backfill on a schedule.
// It is a pure core service with no external control API.
type Scheduler struct {
	config     domain.SchedulerConfig
	store      driven.SchedulerStore
	syncer     driving.SyncCoordinator
	backfiller driving.BackfillScheduler

	mu            sync.Mutex
	filter        domain.CorpusFilter
	backfillBatch int
	active        map[string]bool
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	// tick is how often due tasks are checked.
	tick time.Duration
	now  func() time.Time
}

// NewScheduler creates a scheduler with configuration.
// Either job may be nil, in which case its task succeeds without work.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	syncer driving.SyncCoordinator,
	backfiller driving.BackfillScheduler,
) *Scheduler {
	return &Scheduler{
		config:        config,
		store:         store,
		syncer:        syncer,
		backfiller:    backfiller,
		backfillBatch: DefaultEmbeddingBatchSize,
		active:        make(map[string]bool),
		tick:          time.Minute,
		now:           time.Now,
	}
}

// SetFilter changes the corpus filter used by scheduled syncs.
func (s *Scheduler) SetFilter(filter domain.CorpusFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
}

// SetBackfillBatchSize changes the batch size used by scheduled backfills.
func (s *Scheduler) SetBackfillBatchSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backfillBatch = n
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Info("Scheduler disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, id := range []string{domain.TaskIDPaperSync, domain.TaskIDEmbeddingBackfill} {
		if err := s.ensureTask(ctx, id, domain.TaskNames[id], s.config.GetTaskConfig(id)); err != nil {
			return fmt.Errorf("task %s: %w", id, err)
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	if cfg.Cron != "" {
		if _, err := cronexpr.Parse(cfg.Cron); err != nil {
			return fmt.Errorf("%w: cron %q: %w", domain.ErrInvalidInput, cfg.Cron, err)
		}
	}

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Cron:     cfg.Cron,
			Enabled:  cfg.Enabled,
		}
		task.NextRun = nextRun(task, now)
	} else {
		// Reschedule from now when the timing changed.
		if task.Interval != cfg.Interval || task.Cron != cfg.Cron {
			task.Interval = cfg.Interval
			task.Cron = cfg.Cron
			task.NextRun = nextRun(task, now)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// nextRun returns when task is due after from. A cron expression takes
// precedence over the interval.
func nextRun(task *domain.ScheduledTask, from time.Time) time.Time {
	if task.Cron != "" {
		if expr, err := cronexpr.Parse(task.Cron); err == nil {
			if next := expr.Next(from); !next.IsZero() {
				return next
			}
		}
	}
	if task.Interval <= 0 {
		return from.Add(domain.DefaultSchedulerConfig().GetTaskConfig(task.ID).Interval)
	}
	return from.Add(task.Interval)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		if tasks[i].Due(now) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

// runTask executes a single task in the background. A task that is still
// running from an earlier tick is skipped.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.active[task.ID] {
		s.mu.Unlock()
		return
	}
	s.active[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, task.ID)
			s.mu.Unlock()
		}()

		log := logger.Zap().With(zap.String("task", task.ID))
		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDPaperSync:
			result.ItemsProcessed, err = s.runPaperSync(ctx)
		case domain.TaskIDEmbeddingBackfill:
			result.ItemsProcessed, err = s.runBackfill(ctx)
		default:
			log.Warn("unknown scheduled task")
			return
		}

		result.EndedAt = s.now()
		if err != nil {
			result.Error = err.Error()
			task.LastError = err.Error()
			log.Warn("scheduled task failed", zap.Error(err))
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
			log.Info("scheduled task finished",
				zap.Int("items", result.ItemsProcessed), zap.Duration("took", result.Duration()))
		}

		task.LastRun = result.StartedAt
		task.NextRun = nextRun(task, result.EndedAt)

		// Bookkeeping outlives a cancelled run.
		storeCtx := context.WithoutCancel(ctx)
		if saveErr := s.store.SaveTask(storeCtx, task); saveErr != nil {
			log.Warn("failed to save task", zap.Error(saveErr))
		}
		if recordErr := s.store.RecordResult(storeCtx, result); recordErr != nil {
			log.Warn("failed to record result", zap.Error(recordErr))
		}
		if pruneErr := s.store.PruneHistory(storeCtx, historyKeep); pruneErr != nil {
			log.Warn("failed to prune history", zap.Error(pruneErr))
		}
	}()
}

// runPaperSync runs an incremental sync of the configured filter.
func (s *Scheduler) runPaperSync(ctx context.Context) (int, error) {
	if s.syncer == nil {
		return 0, nil
	}
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	progress, err := s.syncer.StartIncremental(ctx, filter)
	return progress.Fetched, err
}

// runBackfill embeds papers that lack a vector.
func (s *Scheduler) runBackfill(ctx context.Context) (int, error) {
	if s.backfiller == nil {
		return 0, nil
	}
	s.mu.Lock()
	batch := s.backfillBatch
	s.mu.Unlock()

	progress, err := s.backfiller.Run(ctx, batch)
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		logger.Debug("scheduler: embeddings not configured, skipping backfill")
		return 0, nil
	}
	return progress.Completed, err
}
