package services

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papercache/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)

func newTestScheduler(t *testing.T, store *mockSchedulerStore) (*Scheduler, *memory.PaperStore) {
	t.Helper()
	corpus := newMockCorpus(30)
	coordinator, papers, _ := newTestCoordinator(corpus)
	backfiller := NewBackfiller(papers, newMockEmbedder(4))
	backfiller.SetRetryPolicy(fastPolicy(2))

	s := NewScheduler(domain.DefaultSchedulerConfig(), store, coordinator, backfiller)
	s.SetFilter(testFilter)
	return s, papers
}

func TestScheduler_StartStop(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler, _ := newTestScheduler(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg stdsync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, scheduler.Stop())
	wg.Wait()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_Disabled(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	config.Enabled = false
	store := newMockSchedulerStore()
	scheduler := NewScheduler(config, store, nil, nil)

	require.NoError(t, scheduler.Start(context.Background()))
	tasks, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler, _ := newTestScheduler(t, newMockSchedulerStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg stdsync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	// A second start returns immediately.
	assert.NoError(t, scheduler.Start(context.Background()))

	require.NoError(t, scheduler.Stop())
	wg.Wait()
}

func TestScheduler_InitialiseTasks(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler, _ := newTestScheduler(t, store)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	require.NoError(t, scheduler.initialiseTasks(context.Background()))

	syncTask, err := store.GetTask(context.Background(), domain.TaskIDPaperSync)
	require.NoError(t, err)
	require.NotNil(t, syncTask)
	assert.Equal(t, "Paper Sync", syncTask.Name)
	assert.Equal(t, now.Add(6*time.Hour), syncTask.NextRun)

	backfillTask, err := store.GetTask(context.Background(), domain.TaskIDEmbeddingBackfill)
	require.NoError(t, err)
	require.NotNil(t, backfillTask)
	assert.Equal(t, now.Add(time.Hour), backfillTask.NextRun)
}

func TestScheduler_EnsureTask_CronReschedules(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler, _ := newTestScheduler(t, store)
	now := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }
	ctx := context.Background()

	cfg := domain.TaskConfig{Enabled: true, Interval: time.Hour}
	require.NoError(t, scheduler.ensureTask(ctx, "test-task", "Test Task", cfg))

	cfg.Cron = "30 * * * *"
	require.NoError(t, scheduler.ensureTask(ctx, "test-task", "Test Task", cfg))

	task, err := store.GetTask(ctx, "test-task")
	require.NoError(t, err)
	assert.Equal(t, "30 * * * *", task.Cron)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), task.NextRun)

	cfg.Cron = "not a cron"
	assert.ErrorIs(t, scheduler.ensureTask(ctx, "test-task", "Test Task", cfg), domain.ErrInvalidInput)
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, from.Add(2*time.Hour),
		nextRun(&domain.ScheduledTask{Interval: 2 * time.Hour}, from))
	assert.Equal(t, time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC),
		nextRun(&domain.ScheduledTask{Cron: "0 3 * * *", Interval: time.Hour}, from))
	assert.Equal(t, from.Add(time.Hour),
		nextRun(&domain.ScheduledTask{ID: domain.TaskIDEmbeddingBackfill}, from))
	assert.Equal(t, from.Add(6*time.Hour),
		nextRun(&domain.ScheduledTask{ID: domain.TaskIDPaperSync, Cron: "not a cron"}, from))
}

func TestScheduler_CheckAndRunDueTasks(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler, papers := newTestScheduler(t, store)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDPaperSync,
		Interval: time.Hour,
		NextRun:  now.Add(-time.Minute),
		Enabled:  true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDEmbeddingBackfill,
		Interval: time.Hour,
		NextRun:  now.Add(time.Hour),
		Enabled:  true,
	}))

	scheduler.checkAndRunDueTasks(ctx)
	scheduler.wg.Wait()

	count, err := papers.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, count)

	history, err := store.GetTaskHistory(ctx, domain.TaskIDPaperSync, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 30, history[0].ItemsProcessed)

	task, err := store.GetTask(ctx, domain.TaskIDPaperSync)
	require.NoError(t, err)
	assert.True(t, task.NextRun.After(now))
	assert.Empty(t, task.LastError)

	// The backfill task was not due.
	assert.Equal(t, 1, store.resultCount())
}

func TestScheduler_RunBackfill(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler, papers := newTestScheduler(t, store)
	ctx := context.Background()
	require.NoError(t, papers.UpsertMany(ctx, newMockCorpus(5).papers))

	n, err := scheduler.runBackfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestScheduler_BackfillWithoutEmbeddings(t *testing.T) {
	backfiller := NewBackfiller(memory.NewPaperStore(), nil)
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, backfiller)

	n, err := scheduler.runBackfill(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_FailedSyncRecorded(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler, _ := newTestScheduler(t, store)
	scheduler.SetFilter(domain.CorpusFilter{})
	ctx := context.Background()

	task := &domain.ScheduledTask{ID: domain.TaskIDPaperSync, Interval: time.Hour, Enabled: true}
	scheduler.runTask(ctx, task)
	scheduler.wg.Wait()

	history, err := store.GetTaskHistory(ctx, domain.TaskIDPaperSync, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.NotEmpty(t, history[0].Error)
}

func TestScheduler_RunTask_UnknownTaskID(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)

	scheduler.runTask(context.Background(), &domain.ScheduledTask{ID: "unknown-task", Enabled: true})
	scheduler.wg.Wait()
	assert.Zero(t, store.resultCount())
}
