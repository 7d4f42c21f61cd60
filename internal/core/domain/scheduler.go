package domain

import "time"

// Built-in scheduled tasks.
const (
	TaskIDPaperSync         = "paper-sync"
	TaskIDEmbeddingBackfill = "embedding-backfill"
)

// TaskNames maps each built-in task to its display name.
var TaskNames = map[string]string{
	TaskIDPaperSync:         "Paper Sync",
	TaskIDEmbeddingBackfill: "Embedding Backfill",
}

// ScheduledTask is the persisted state of a recurring sync or backfill.
// Cron, when set, takes precedence over Interval.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Cron     string
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	LastError   string
}

// Due reports whether an enabled task should run at now.
// A task that was never scheduled is due immediately.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskResult records one run of a scheduled task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed counts papers synced or embedded.
	ItemsProcessed int
}

// Duration is the wall time of the run.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig is the scheduler's master switch and per-task timing.
type SchedulerConfig struct {
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig is the timing of one task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
	Cron     string
}

// GetTaskConfig returns the zero TaskConfig for unknown tasks.
func (c SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig syncs every six hours and backfills hourly.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDPaperSync:         {Enabled: true, Interval: 6 * time.Hour},
			TaskIDEmbeddingBackfill: {Enabled: true, Interval: time.Hour},
		},
	}
}
