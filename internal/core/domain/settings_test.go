package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_IsValid(t *testing.T) {
	assert.True(t, AIProviderOpenAI.IsValid())
	assert.True(t, AIProviderOllama.IsValid())
	assert.False(t, AIProvider("anthropic").IsValid())
	assert.False(t, AIProvider("").IsValid())
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "OpenAI (cloud)", AIProviderOpenAI.Description())
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, "Unknown", AIProvider("x").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk-test"}, true},
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestExpansionSettings_IsConfigured(t *testing.T) {
	assert.False(t, ExpansionSettings{}.IsConfigured())
	assert.True(t, ExpansionSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 100, s.Sync.BatchSize)
	assert.Equal(t, 5, s.Sync.MaxAttempts)
	assert.Equal(t, time.Second, s.Sync.InitialBackoff)
	assert.Equal(t, 30*time.Second, s.Sync.MaxBackoff)
	assert.Equal(t, 20, s.Embedding.BatchSize)
	assert.Equal(t, "text-embedding-3-small", s.Embedding.Model)
	assert.InDelta(t, 0.3, s.Search.Threshold, 1e-9)
	assert.Equal(t, 20, s.Search.Limit)
	assert.False(t, s.Embedding.IsConfigured())
	assert.NotEmpty(t, s.DataDir)
}

func TestSchedulerSettings_Config(t *testing.T) {
	cfg := SchedulerSettings{Enabled: true, SyncCron: "0 */6 * * *"}.Config()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "0 */6 * * *", cfg.GetTaskConfig(TaskIDPaperSync).Cron)
	assert.Empty(t, cfg.GetTaskConfig(TaskIDEmbeddingBackfill).Cron)
	assert.Equal(t, time.Hour, cfg.GetTaskConfig(TaskIDEmbeddingBackfill).Interval)
}

func TestCorpusSettings_Filter(t *testing.T) {
	s := CorpusSettings{Categories: []string{"cs.LG", "cs.AI"}}
	assert.Equal(t, []string{"cs.AI", "cs.LG"}, s.Filter().Categories)
}

func TestSyncSettings_RetryPolicy(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy(), SyncSettings{}.RetryPolicy())

	policy := SyncSettings{MaxAttempts: 2, MaxBackoff: time.Minute}.RetryPolicy()
	assert.Equal(t, 2, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.InitialInterval)
	assert.Equal(t, time.Minute, policy.MaxInterval)
	assert.InDelta(t, 2.0, policy.Multiplier, 0.001)
}
