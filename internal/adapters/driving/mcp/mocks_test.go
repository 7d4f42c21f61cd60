package mcp

import (
	"context"
	"sync"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	outcome *domain.SearchOutcome
	history []domain.SearchHistoryRecord
	err     error

	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) (*domain.SearchOutcome, error) {
	m.lastQuery = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.outcome == nil {
		return &domain.SearchOutcome{}, nil
	}
	return m.outcome, nil
}

func (m *mockSearchService) History(_ context.Context, _ int) ([]domain.SearchHistoryRecord, error) {
	return m.history, m.err
}

// mockPaperService is a mock implementation of driving.PaperService.
type mockPaperService struct {
	papers  []domain.Paper
	paper   *domain.Paper
	summary *domain.Summary
	stats   *driving.CacheStats
	err     error
}

func (m *mockPaperService) Get(_ context.Context, _ string) (*domain.Paper, error) {
	return m.paper, m.err
}

func (m *mockPaperService) List(_ context.Context, _, _ int) ([]domain.Paper, error) {
	return m.papers, m.err
}

func (m *mockPaperService) Delete(_ context.Context, _ string) error { return m.err }

func (m *mockPaperService) Clear(_ context.Context) error { return m.err }

func (m *mockPaperService) Stats(_ context.Context) (*driving.CacheStats, error) {
	return m.stats, m.err
}

func (m *mockPaperService) SetSummary(_ context.Context, _, _, _ string) (*domain.Summary, error) {
	return m.summary, m.err
}

func (m *mockPaperService) GenerateSummary(_ context.Context, _, _ string) (*domain.Summary, error) {
	return m.summary, m.err
}

func (m *mockPaperService) GetSummary(_ context.Context, _, _ string) (*domain.Summary, error) {
	if m.summary == nil {
		return nil, domain.ErrNotFound
	}
	return m.summary, m.err
}

func (m *mockPaperService) Interact(
	_ context.Context,
	_ string,
	_ domain.InteractionKind,
) (*domain.Interaction, error) {
	return nil, m.err
}

func (m *mockPaperService) Interactions(_ context.Context, _ string) ([]domain.Interaction, error) {
	return nil, m.err
}

func (m *mockPaperService) Open(_ context.Context, _ string) error { return m.err }

// mockSyncCoordinator is a mock implementation of driving.SyncCoordinator.
type mockSyncCoordinator struct {
	mu       sync.Mutex
	status   domain.SyncProgress
	started  []domain.SyncMode
	filterKey string
}

func (m *mockSyncCoordinator) start(mode domain.SyncMode, filter domain.CorpusFilter) (domain.SyncProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, mode)
	m.filterKey = filter.Key()
	return domain.SyncProgress{Mode: mode, State: domain.SyncCompleted}, nil
}

func (m *mockSyncCoordinator) StartIncremental(_ context.Context, f domain.CorpusFilter) (domain.SyncProgress, error) {
	return m.start(domain.SyncIncremental, f)
}

func (m *mockSyncCoordinator) StartFull(_ context.Context, f domain.CorpusFilter) (domain.SyncProgress, error) {
	return m.start(domain.SyncFull, f)
}

func (m *mockSyncCoordinator) Abort(_ domain.CorpusFilter) bool { return false }

func (m *mockSyncCoordinator) Status(_ domain.CorpusFilter) domain.SyncProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockSyncCoordinator) SetBatchSize(_ int) {}

func (m *mockSyncCoordinator) SetRetryPolicy(_ domain.RetryPolicy) {}

func (m *mockSyncCoordinator) SetProgressFunc(_ driving.SyncProgressFunc) {}

func (m *mockSyncCoordinator) startedModes() []domain.SyncMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SyncMode(nil), m.started...)
}

// mockBackfill is a mock implementation of driving.BackfillScheduler.
type mockBackfill struct {
	mu      sync.Mutex
	status  domain.BackfillProgress
	batches []int
}

func (m *mockBackfill) Run(_ context.Context, maxBatchSize int) (domain.BackfillProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, maxBatchSize)
	return domain.BackfillProgress{}, nil
}

func (m *mockBackfill) Cancel() bool { return false }

func (m *mockBackfill) Status() domain.BackfillProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockBackfill) SetProgressFunc(_ driving.BackfillProgressFunc) {}

func (m *mockBackfill) runs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.AppSettings
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return nil }

func (m *mockSettingsService) SetCategories(_ []string) error { return nil }

func (m *mockSettingsService) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error { return nil }

func (m *mockSettingsService) SetExpansionProvider(_ domain.AIProvider, _, _ string) error { return nil }

func (m *mockSettingsService) Validate() error { return nil }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettingsService) ValidateExpansionConfig() error { return nil }
