package domain

import "time"

// SyncState is the lifecycle state of a sync session.
type SyncState string

// Sync states. Running is entered from Idle or any terminal state.
const (
	SyncIdle      SyncState = "idle"
	SyncRunning   SyncState = "running"
	SyncCompleted SyncState = "completed"
	SyncAborted   SyncState = "aborted"
	SyncFailed    SyncState = "failed"
)

// IsTerminal reports whether the state ends a session.
func (s SyncState) IsTerminal() bool {
	return s == SyncCompleted || s == SyncAborted || s == SyncFailed
}

// SyncMode selects how a session plans its fetches.
type SyncMode string

// Sync modes.
const (
	// SyncIncremental resumes from the first gap in the persisted ranges.
	SyncIncremental SyncMode = "incremental"

	// SyncFull re-walks the whole corpus slice regardless of prior ranges.
	SyncFull SyncMode = "full"
)

// SyncProgress is the transient state of one sync session.
// It is created at session start and discarded when the session ends.
type SyncProgress struct {
	// FilterKey identifies the corpus filter being synced.
	FilterKey string

	// Mode is the planning mode of the session.
	Mode SyncMode

	// State is the current lifecycle state.
	State SyncState

	// Fetched is the number of documents committed during this session.
	Fetched int

	// Remaining is the estimated number of offsets still uncovered.
	Remaining int

	// Total is the latest total-count estimate from the corpus.
	Total int

	// LastOffset is the end offset of the last committed batch.
	LastOffset int

	// Batches is the number of batches committed during this session.
	Batches int

	// LastError holds the terminal error message of a failed session.
	LastError string

	// StartedAt is when the session started.
	StartedAt time.Time

	// EndedAt is when the session reached a terminal state.
	EndedAt time.Time
}

// Done reports whether the session has reached a terminal state.
func (p SyncProgress) Done() bool {
	return p.State.IsTerminal()
}

// RetryPolicy bounds the retries of one failing batch.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64
}

// DefaultRetryPolicy returns five attempts with exponential backoff from 1s to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
	}
}
