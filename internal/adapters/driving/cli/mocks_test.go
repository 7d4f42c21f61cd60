package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
)

// mockSyncCoordinator implements driving.SyncCoordinator for testing.
type mockSyncCoordinator struct {
	mu        sync.Mutex
	progress  domain.SyncProgress
	err       error
	modes     []domain.SyncMode
	filters   []domain.CorpusFilter
	batchSize int
	policy    domain.RetryPolicy

	// onStart runs before a sync starts, outside the lock.
	onStart func(ctx context.Context)
}

func (m *mockSyncCoordinator) start(mode domain.SyncMode, f domain.CorpusFilter) (domain.SyncProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = append(m.modes, mode)
	m.filters = append(m.filters, f)
	p := m.progress
	p.Mode = mode
	return p, m.err
}

func (m *mockSyncCoordinator) StartIncremental(ctx context.Context, f domain.CorpusFilter) (domain.SyncProgress, error) {
	if m.onStart != nil {
		m.onStart(ctx)
	}
	return m.start(domain.SyncIncremental, f)
}

func (m *mockSyncCoordinator) StartFull(_ context.Context, f domain.CorpusFilter) (domain.SyncProgress, error) {
	return m.start(domain.SyncFull, f)
}

func (m *mockSyncCoordinator) Abort(_ domain.CorpusFilter) bool { return false }

func (m *mockSyncCoordinator) Status(_ domain.CorpusFilter) domain.SyncProgress { return m.progress }

func (m *mockSyncCoordinator) SetBatchSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSize = size
}

func (m *mockSyncCoordinator) SetRetryPolicy(policy domain.RetryPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = policy
}

func (m *mockSyncCoordinator) SetProgressFunc(_ driving.SyncProgressFunc) {}

// mockBackfill implements driving.BackfillScheduler for testing.
type mockBackfill struct {
	mu       sync.Mutex
	progress []domain.BackfillProgress
	err      error
	batches  []int
}

func (m *mockBackfill) Run(_ context.Context, maxBatchSize int) (domain.BackfillProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, maxBatchSize)
	if m.err != nil {
		return domain.BackfillProgress{}, m.err
	}
	if len(m.progress) == 0 {
		return domain.BackfillProgress{}, nil
	}
	p := m.progress[0]
	if len(m.progress) > 1 {
		m.progress = m.progress[1:]
	}
	return p, nil
}

func (m *mockBackfill) Cancel() bool { return false }

func (m *mockBackfill) Status() domain.BackfillProgress { return domain.BackfillProgress{} }

func (m *mockBackfill) SetProgressFunc(_ driving.BackfillProgressFunc) {}

// mockSearchService implements driving.SearchService for testing.
type mockSearchService struct {
	outcome   *domain.SearchOutcome
	history   []domain.SearchHistoryRecord
	err       error
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
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

// mockPaperService implements driving.PaperService for testing.
type mockPaperService struct {
	papers       []domain.Paper
	paper        *domain.Paper
	summary      *domain.Summary
	stats        *driving.CacheStats
	interactions []domain.Interaction
	err          error

	cleared     bool
	deleted     string
	opened      string
	interacted  domain.InteractionKind
	summaryLang string
	summaryText string
}

func (m *mockPaperService) Get(_ context.Context, _ string) (*domain.Paper, error) {
	return m.paper, m.err
}

func (m *mockPaperService) List(_ context.Context, _, _ int) ([]domain.Paper, error) {
	return m.papers, m.err
}

func (m *mockPaperService) Delete(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *mockPaperService) Clear(_ context.Context) error {
	m.cleared = true
	return m.err
}

func (m *mockPaperService) Stats(_ context.Context) (*driving.CacheStats, error) {
	return m.stats, m.err
}

func (m *mockPaperService) SetSummary(_ context.Context, paperID, language, content string) (*domain.Summary, error) {
	m.summaryLang = language
	m.summaryText = content
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Summary{PaperID: paperID, Language: language, Content: content}, nil
}

func (m *mockPaperService) GenerateSummary(_ context.Context, _, language string) (*domain.Summary, error) {
	m.summaryLang = language
	return m.summary, m.err
}

func (m *mockPaperService) GetSummary(_ context.Context, _, language string) (*domain.Summary, error) {
	m.summaryLang = language
	return m.summary, m.err
}

func (m *mockPaperService) Interact(_ context.Context, paperID string, kind domain.InteractionKind) (*domain.Interaction, error) {
	m.interacted = kind
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Interaction{ID: "i-1", PaperID: paperID, Kind: kind}, nil
}

func (m *mockPaperService) Interactions(_ context.Context, _ string) ([]domain.Interaction, error) {
	return m.interactions, m.err
}

func (m *mockPaperService) Open(_ context.Context, paperID string) error {
	m.opened = paperID
	return m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error

	categories        []string
	embeddingProvider domain.AIProvider
	embeddingModel    string
	embeddingKey      string
	expansionProvider domain.AIProvider
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetCategories(categories []string) error {
	m.categories = categories
	m.settings.Corpus.Categories = categories
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embeddingProvider = provider
	m.embeddingModel = model
	m.embeddingKey = apiKey
	return nil
}

func (m *mockSettingsService) SetExpansionProvider(provider domain.AIProvider, _, _ string) error {
	m.expansionProvider = provider
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.pingErr }

func (m *mockSettingsService) ValidateExpansionConfig() error { return m.pingErr }

// mockScheduler implements driving.Scheduler and filterSetter for testing.
type mockScheduler struct {
	mu      sync.Mutex
	started bool
	stopped bool
	filter  domain.CorpusFilter
	batch   int
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) SetFilter(filter domain.CorpusFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
}

func (m *mockScheduler) SetBackfillBatchSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch = n
}

// testServices bundles the mocks installed by setupTestServices.
type testServices struct {
	sync      *mockSyncCoordinator
	backfill  *mockBackfill
	search    *mockSearchService
	papers    *mockPaperService
	settings  *mockSettingsService
	scheduler *mockScheduler
}

// setupTestServices installs fresh mocks and returns them with a cleanup func.
func setupTestServices() (*testServices, func()) {
	old := Services{
		Sync:      syncCoordinator,
		Backfill:  backfiller,
		Search:    searchService,
		Papers:    paperService,
		Settings:  settingsService,
		Scheduler: scheduler,
		Watcher:   configWatcher,
	}

	ts := &testServices{
		sync:      &mockSyncCoordinator{progress: domain.SyncProgress{State: domain.SyncCompleted}},
		backfill:  &mockBackfill{},
		search:    &mockSearchService{},
		papers:    &mockPaperService{},
		settings:  newMockSettings(),
		scheduler: &mockScheduler{},
	}
	SetServices(Services{
		Sync:      ts.sync,
		Backfill:  ts.backfill,
		Search:    ts.search,
		Papers:    ts.papers,
		Settings:  ts.settings,
		Scheduler: ts.scheduler,
	})

	return ts, func() {
		SetServices(old)
	}
}

// setupNilServices removes every service and returns a cleanup func.
func setupNilServices() func() {
	old := Services{
		Sync:      syncCoordinator,
		Backfill:  backfiller,
		Search:    searchService,
		Papers:    paperService,
		Settings:  settingsService,
		Scheduler: scheduler,
		Watcher:   configWatcher,
	}
	SetServices(Services{})
	return func() { SetServices(old) }
}

// executeCommand runs the root command with args and stdin, returning the output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default so tests stay independent.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
