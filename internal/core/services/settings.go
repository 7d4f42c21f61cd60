package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCorpusCategories = "corpus.categories"
	keyCorpusFrom       = "corpus.from"
	keyCorpusTo         = "corpus.to"
	keyCorpusBaseURL    = "corpus.base_url"
	keyCorpusRPS        = "corpus.requests_per_second"

	keySyncBatchSize      = "sync.batch_size"
	keySyncMaxAttempts    = "sync.max_attempts"
	keySyncInitialBackoff = "sync.initial_backoff_ms"
	keySyncMaxBackoff     = "sync.max_backoff_ms"

	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyEmbedBatchSize = "embedding.batch_size"

	keyExpandProvider  = "expansion.provider"
	keyExpandModel     = "expansion.model"
	keyExpandBaseURL   = "expansion.base_url"
	keyExpandAPIKey    = "expansion.api_key"
	keyExpandCacheSize = "expansion.cache_size"

	keySearchThreshold = "search.threshold"
	keySearchLimit     = "search.limit"

	keySchedulerEnabled      = "scheduler.enabled"
	keySchedulerSyncCron     = "scheduler.sync_cron"
	keySchedulerBackfillCron = "scheduler.backfill_cron"

	keyDataDir = "data.dir"

	// envOpenAIKey is read when no API key is configured.
	envOpenAIKey = "OPENAI_API_KEY"
)

// dateLayout is the format of corpus.from and corpus.to.
const dateLayout = "2006-01-02"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Corpus: domain.CorpusSettings{
			Categories:        s.getStringSlice(keyCorpusCategories, defaults.Corpus.Categories),
			From:              s.getDate(keyCorpusFrom),
			To:                s.getDate(keyCorpusTo),
			BaseURL:           s.configStore.GetString(keyCorpusBaseURL),
			RequestsPerSecond: s.getFloat(keyCorpusRPS, defaults.Corpus.RequestsPerSecond),
		},
		Sync: domain.SyncSettings{
			BatchSize:      s.getInt(keySyncBatchSize, defaults.Sync.BatchSize),
			MaxAttempts:    s.getInt(keySyncMaxAttempts, defaults.Sync.MaxAttempts),
			InitialBackoff: s.getMillis(keySyncInitialBackoff, defaults.Sync.InitialBackoff),
			MaxBackoff:     s.getMillis(keySyncMaxBackoff, defaults.Sync.MaxBackoff),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:  s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			BaseURL:   s.configStore.GetString(keyEmbedBaseURL), // empty is valid for cloud providers
			APIKey:    s.configStore.GetString(keyEmbedAPIKey),
			BatchSize: s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
		},
		Expansion: domain.ExpansionSettings{
			Provider:  s.getProvider(keyExpandProvider, defaults.Expansion.Provider),
			BaseURL:   s.configStore.GetString(keyExpandBaseURL),
			APIKey:    s.configStore.GetString(keyExpandAPIKey),
			CacheSize: s.getInt(keyExpandCacheSize, defaults.Expansion.CacheSize),
		},
		Search: domain.SearchSettings{
			Threshold: s.getFloat(keySearchThreshold, defaults.Search.Threshold),
			Limit:     s.getInt(keySearchLimit, defaults.Search.Limit),
		},
		Scheduler: domain.SchedulerSettings{
			Enabled:      s.getBool(keySchedulerEnabled, defaults.Scheduler.Enabled),
			SyncCron:     s.configStore.GetString(keySchedulerSyncCron),
			BackfillCron: s.configStore.GetString(keySchedulerBackfillCron),
		},
		DataDir: s.getString(keyDataDir, defaults.DataDir),
	}

	// An OpenAI key in the environment enables the OpenAI providers.
	if envKey := s.getenv(envOpenAIKey); envKey != "" {
		applyEnvKey(&settings.Embedding.Provider, &settings.Embedding.APIKey, envKey)
		applyEnvKey(&settings.Expansion.Provider, &settings.Expansion.APIKey, envKey)
	}

	settings.Embedding.Model = s.getString(keyEmbedModel, defaultModel(
		domain.DefaultEmbeddingModels(), settings.Embedding.Provider, defaults.Embedding.Model))
	settings.Expansion.Model = s.getString(keyExpandModel, defaultModel(
		domain.DefaultChatModels(), settings.Expansion.Provider, defaults.Expansion.Model))

	return settings, nil
}

func applyEnvKey(provider *domain.AIProvider, apiKey *string, envKey string) {
	if *provider == "" {
		*provider = domain.AIProviderOpenAI
	}
	if *provider == domain.AIProviderOpenAI && *apiKey == "" {
		*apiKey = envKey
	}
}

func defaultModel(models map[domain.AIProvider]string, provider domain.AIProvider, fallback string) string {
	if m, ok := models[provider]; ok {
		return m
	}
	return fallback
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyCorpusCategories, settings.Corpus.Categories},
		{keyCorpusFrom, formatDate(settings.Corpus.From)},
		{keyCorpusTo, formatDate(settings.Corpus.To)},
		{keyCorpusBaseURL, settings.Corpus.BaseURL},
		{keyCorpusRPS, settings.Corpus.RequestsPerSecond},
		{keySyncBatchSize, settings.Sync.BatchSize},
		{keySyncMaxAttempts, settings.Sync.MaxAttempts},
		{keySyncInitialBackoff, settings.Sync.InitialBackoff.Milliseconds()},
		{keySyncMaxBackoff, settings.Sync.MaxBackoff.Milliseconds()},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyExpandProvider, settings.Expansion.Provider.String()},
		{keyExpandModel, settings.Expansion.Model},
		{keyExpandBaseURL, settings.Expansion.BaseURL},
		{keyExpandCacheSize, settings.Expansion.CacheSize},
		{keySearchThreshold, settings.Search.Threshold},
		{keySearchLimit, settings.Search.Limit},
		{keySchedulerEnabled, settings.Scheduler.Enabled},
		{keySchedulerSyncCron, settings.Scheduler.SyncCron},
		{keySchedulerBackfillCron, settings.Scheduler.BackfillCron},
		{keyDataDir, settings.DataDir},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Keys taken from the environment are never written to disk.
	envKey := s.getenv(envOpenAIKey)
	if k := settings.Embedding.APIKey; k != "" && k != envKey {
		if err := s.configStore.Set(keyEmbedAPIKey, k); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if k := settings.Expansion.APIKey; k != "" && k != envKey {
		if err := s.configStore.Set(keyExpandAPIKey, k); err != nil {
			return fmt.Errorf("save expansion api_key: %w", err)
		}
	}

	return nil
}

// SetCategories changes the mirrored corpus categories.
func (s *SettingsService) SetCategories(categories []string) error {
	filter := domain.CorpusFilter{Categories: categories}
	if err := filter.Validate(); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Corpus.Categories = filter.Normalized().Categories
	return s.Save(settings)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if err := checkProvider(provider, apiKey); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.BaseURL = providerBaseURL(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetExpansionProvider configures the query-expansion provider.
func (s *SettingsService) SetExpansionProvider(provider domain.AIProvider, model, apiKey string) error {
	if err := checkProvider(provider, apiKey); err != nil {
		return fmt.Errorf("expansion: %w", err)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Expansion.Provider = provider
	settings.Expansion.Model = model
	if model == "" {
		settings.Expansion.Model = domain.DefaultChatModels()[provider]
	}
	settings.Expansion.BaseURL = providerBaseURL(provider, settings.Expansion.BaseURL)
	settings.Expansion.APIKey = apiKey

	return s.Save(settings)
}

func checkProvider(provider domain.AIProvider, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}
	return nil
}

// providerBaseURL returns the endpoint for provider. Local providers keep a
// configured URL or fall back to Ollama's OpenAI-compatible endpoint.
func providerBaseURL(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		return ""
	}
	if current == "" {
		return "http://localhost:11434/v1"
	}
	return current
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.Corpus.Filter().Validate(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if settings.Corpus.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: corpus.requests_per_second must be positive", domain.ErrInvalidInput)
	}
	if settings.Sync.BatchSize <= 0 || settings.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("%w: sync.batch_size and sync.max_attempts must be positive", domain.ErrInvalidInput)
	}
	if settings.Search.Threshold < -1 || settings.Search.Threshold > 1 {
		return fmt.Errorf("%w: search.threshold must be within [-1, 1]", domain.ErrInvalidInput)
	}
	if settings.Search.Limit < 0 {
		return fmt.Errorf("%w: search.limit must not be negative", domain.ErrInvalidInput)
	}
	for key, expr := range map[string]string{
		keySchedulerSyncCron:     settings.Scheduler.SyncCron,
		keySchedulerBackfillCron: settings.Scheduler.BackfillCron,
	} {
		if expr == "" {
			continue
		}
		if _, err := cronexpr.Parse(expr); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
	}
	if p := settings.Embedding.Provider; p != "" && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %s is not fully configured", domain.ErrInvalidInput, p)
	}
	if p := settings.Expansion.Provider; p != "" && !settings.Expansion.IsConfigured() {
		return fmt.Errorf("%w: expansion provider %s is not fully configured", domain.ErrInvalidInput, p)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateExpansionConfig validates the current expansion configuration by pinging the provider.
func (s *SettingsService) ValidateExpansionConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateExpansion(&settings.Expansion)
}

// GetSchedulerConfig returns the scheduler configuration.
// Per-task keys (scheduler.paper_sync.enabled, scheduler.paper_sync.interval)
// override the defaults; cron expressions override intervals.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	settings, err := s.Get()
	if err != nil {
		return domain.DefaultSchedulerConfig()
	}
	cfg := settings.Scheduler.Config()

	// Map from task ID to config key (underscore version for TOML)
	taskKeys := map[string]string{
		domain.TaskIDPaperSync:         "paper_sync",
		domain.TaskIDEmbeddingBackfill: "embedding_backfill",
	}
	for taskID, configKey := range taskKeys {
		prefix := "scheduler." + configKey + "."
		taskCfg := cfg.TaskConfigs[taskID]

		if _, exists := s.configStore.Get(prefix + "enabled"); exists {
			taskCfg.Enabled = s.configStore.GetBool(prefix + "enabled")
		}
		if interval := s.configStore.GetString(prefix + "interval"); interval != "" {
			if d, err := time.ParseDuration(interval); err == nil && d > 0 {
				taskCfg.Interval = d
			}
		}
		cfg.TaskConfigs[taskID] = taskCfg
	}
	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * time.Millisecond
}

func (s *SettingsService) getDate(key string) time.Time {
	val := strings.TrimSpace(s.configStore.GetString(key))
	if val == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
