package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsShow(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.Embedding.Provider = domain.AIProviderOpenAI
	ts.settings.settings.Embedding.APIKey = "sk-1234567890abcdef"

	out, err := executeCommand(t, "", "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Categories: cs.AI, cs.CL, cs.LG")
	assert.Contains(t, out, "Filter key: cs.AI,cs.CL,cs.LG|*..*")
	assert.Contains(t, out, "Window: * to *")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.Contains(t, out, "Threshold: 0.30")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_Warning(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.validateErr = errors.New("embedding provider not configured")

	out, err := executeCommand(t, "", "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: embedding provider not configured")
	assert.Contains(t, out, "papercache settings wizard")
}

func TestSettingsCategories(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "", "settings", "categories", "cs.IR", "cs.CL", "cs.IR")

	require.NoError(t, err)
	assert.Equal(t, []string{"cs.IR", "cs.CL", "cs.IR"}, ts.settings.categories)
	assert.Contains(t, out, "Categories set to: cs.CL, cs.IR")
}

func TestSettingsEmbedding_OpenAI(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "1\n\nsk-test\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, ts.settings.embeddingProvider)
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.AIProviderOpenAI], ts.settings.embeddingModel)
	assert.Equal(t, "sk-test", ts.settings.embeddingKey)
	assert.Contains(t, out, "Validating configuration... OK")
}

func TestSettingsEmbedding_OllamaNeedsNoKey(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "2\nnomic-embed-text\n", "settings", "embedding")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, ts.settings.embeddingProvider)
	assert.Equal(t, "nomic-embed-text", ts.settings.embeddingModel)
	assert.Empty(t, ts.settings.embeddingKey)
}

func TestSettingsExpansion_MissingKey(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "1\n\n\n", "settings", "expansion")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
	assert.Empty(t, ts.settings.expansionProvider)
}

func TestSettingsExpansion_PingFailure(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.pingErr = errors.New("connection refused")

	out, err := executeCommand(t, "2\n\n", "settings", "expansion")

	require.Error(t, err)
	assert.Contains(t, out, "FAILED: connection refused")
	assert.Contains(t, err.Error(), "expansion configuration validation failed")
}

func TestSettingsValidate(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.Embedding.Provider = domain.AIProviderOllama
	ts.settings.settings.Expansion.Provider = domain.AIProviderOllama

	out, err := executeCommand(t, "", "settings", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedding provider... OK")
	assert.Contains(t, out, "Expansion provider... OK")

	ts.settings.pingErr = errors.New("down")
	_, err = executeCommand(t, "", "settings", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider: down")
}

func TestSettingsWizard(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	stdin := "cs.IR cs.CL\n" + "1\n\nsk-embed\n" + "2\nllama3.2\n"
	out, err := executeCommand(t, stdin, "settings", "wizard")

	require.NoError(t, err)
	assert.Equal(t, []string{"cs.IR", "cs.CL"}, ts.settings.categories)
	assert.Equal(t, domain.AIProviderOpenAI, ts.settings.embeddingProvider)
	assert.Equal(t, "sk-embed", ts.settings.embeddingKey)
	assert.Equal(t, domain.AIProviderOllama, ts.settings.expansionProvider)
	assert.Contains(t, out, "All settings are valid and saved.")
}

func TestSettingsNotConfigured(t *testing.T) {
	cleanup := setupNilServices()
	defer cleanup()

	_, err := executeCommand(t, "", "settings")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings service not configured")
}
