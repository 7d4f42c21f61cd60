package domain

import (
	"os"
	"path/filepath"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or chat completions.
// Every provider is reached through an OpenAI-compatible API.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOllama is a local Ollama instance using its OpenAI-compatible endpoint.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// CorpusSettings selects and throttles the remote corpus.
type CorpusSettings struct {
	// Categories are the category tags to mirror.
	Categories []string

	// From and To bound the publication window (zero = open).
	From time.Time
	To   time.Time

	// BaseURL overrides the corpus API endpoint.
	BaseURL string

	// RequestsPerSecond throttles corpus requests.
	RequestsPerSecond float64
}

// Filter returns the corpus filter described by the settings.
func (c CorpusSettings) Filter() CorpusFilter {
	return CorpusFilter{Categories: c.Categories, From: c.From, To: c.To}.Normalized()
}

// SyncSettings configures the sync coordinator.
type SyncSettings struct {
	// BatchSize is the maximum number of papers requested per page.
	BatchSize int

	// MaxAttempts bounds the attempts per failing batch.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
}

// RetryPolicy returns the default policy with any configured values applied.
func (s SyncSettings) RetryPolicy() RetryPolicy {
	policy := DefaultRetryPolicy()
	if s.MaxAttempts > 0 {
		policy.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoff > 0 {
		policy.InitialInterval = s.InitialBackoff
	}
	if s.MaxBackoff > 0 {
		policy.MaxInterval = s.MaxBackoff
	}
	return policy
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (required for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts per provider request.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ExpansionSettings holds the chat-completion provider used for query
// expansion and summaries.
type ExpansionSettings struct {
	// Provider is the chat-completion provider.
	Provider AIProvider

	// Model is the chat model name.
	Model string

	// BaseURL is the API endpoint (required for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// CacheSize is the number of expanded queries kept in memory.
	CacheSize int
}

// IsConfigured returns true if the expansion provider is set up.
func (e ExpansionSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	// Threshold is the default minimum cosine similarity.
	Threshold float64

	// Limit is the default maximum number of results.
	Limit int
}

// SchedulerSettings configures the background scheduler.
type SchedulerSettings struct {
	// Enabled is the master switch.
	Enabled bool

	// SyncCron is an optional cron expression for paper sync.
	SyncCron string

	// BackfillCron is an optional cron expression for embedding backfill.
	BackfillCron string
}

// Config converts the settings into a scheduler configuration.
// Cron expressions take precedence over the default intervals.
func (s SchedulerSettings) Config() SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.Enabled = s.Enabled

	syncCfg := cfg.TaskConfigs[TaskIDPaperSync]
	syncCfg.Cron = s.SyncCron
	cfg.TaskConfigs[TaskIDPaperSync] = syncCfg

	backfillCfg := cfg.TaskConfigs[TaskIDEmbeddingBackfill]
	backfillCfg.Cron = s.BackfillCron
	cfg.TaskConfigs[TaskIDEmbeddingBackfill] = backfillCfg

	return cfg
}

// AppSettings holds all application settings.
type AppSettings struct {
	Corpus    CorpusSettings
	Sync      SyncSettings
	Embedding EmbeddingSettings
	Expansion ExpansionSettings
	Search    SearchSettings
	Scheduler SchedulerSettings

	// DataDir holds the database and prompt files.
	DataDir string
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured until an API key or base URL is set.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Corpus: CorpusSettings{
			Categories:        []string{"cs.AI", "cs.CL", "cs.LG"},
			RequestsPerSecond: 1.0 / 3.0,
		},
		Sync: SyncSettings{
			BatchSize:      100,
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Model:     DefaultEmbeddingModels()[AIProviderOpenAI],
			BatchSize: 20,
		},
		Expansion: ExpansionSettings{
			Model:     DefaultChatModels()[AIProviderOpenAI],
			CacheSize: 256,
		},
		Search: SearchSettings{
			Threshold: 0.3,
			Limit:     20,
		},
		Scheduler: SchedulerSettings{
			Enabled: true,
		},
		DataDir: DefaultDataDir(),
	}
}

// DefaultDataDir returns ~/.papercache, or a relative directory when the
// home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".papercache"
	}
	return filepath.Join(home, ".papercache")
}

// AllProviders returns every supported provider.
func AllProviders() []AIProvider {
	return []AIProvider{
		AIProviderOpenAI,
		AIProviderOllama,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultChatModels returns default chat models for each provider.
func DefaultChatModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
