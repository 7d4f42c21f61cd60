// Package ai provides factory functions for creating AI service adapters.
// Every provider is reached through the OpenAI-compatible adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/papercache/internal/adapters/driven/openai"
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	QueryExpander    driven.QueryExpander
	Summariser       driven.Summariser
	Warnings         []string // Non-fatal issues that disabled a feature.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
}

// Init creates every configured AI service. Services that fail to
// initialise or validate are left nil and reported as warnings, so
// commands that do not need them keep working.
func Init(settings *domain.AppSettings, prompts driven.PromptStore, validate bool) *InitResult {
	result := &InitResult{}
	if settings == nil {
		return result
	}

	embedder, err := createEmbedding(&settings.Embedding, validate)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case embedder == nil:
		result.Warnings = append(result.Warnings, "embedding provider not configured: backfill and search are disabled")
	default:
		result.EmbeddingService = embedder
	}

	if !settings.Expansion.IsConfigured() {
		result.Warnings = append(result.Warnings, "expansion provider not configured: search and summaries are disabled")
		return result
	}

	if result.EmbeddingService != nil {
		expander, err := CreateQueryExpander(&settings.Expansion, result.EmbeddingService, prompts)
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		} else {
			result.QueryExpander = expander
		}
	}
	result.Summariser = CreateSummariser(&settings.Expansion, prompts)

	return result
}

func createEmbedding(settings *domain.EmbeddingSettings, validate bool) (driven.EmbeddingService, error) {
	if validate {
		return CreateAndValidateEmbeddingService(settings)
	}
	return CreateEmbeddingService(settings)
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'papercache settings' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'papercache settings' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the embedding service described by settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI, domain.AIProviderOllama:
		return openai.NewEmbeddingService(openai.EmbeddingConfig{
			APIKey:       settings.APIKey,
			BaseURL:      baseURL(settings.Provider, settings.BaseURL),
			Model:        settings.Model,
			MaxBatchSize: settings.BatchSize,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateQueryExpander creates the query expander described by settings.
func CreateQueryExpander(
	settings *domain.ExpansionSettings,
	embedder driven.EmbeddingService,
	prompts driven.PromptStore,
) (driven.QueryExpander, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, domain.ErrExpansionUnavailable
	}
	return openai.NewExpander(chatConfig(settings), embedder, prompts)
}

// CreateSummariser creates the summariser described by settings.
// Returns nil if the provider is not configured.
func CreateSummariser(settings *domain.ExpansionSettings, prompts driven.PromptStore) driven.Summariser {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	return openai.NewSummariser(chatConfig(settings), prompts)
}

// ValidateEmbeddingConfig pings the embedding provider with the default timeout.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	return NewConfigValidator().ValidateEmbedding(settings)
}

// ValidateExpansionConfig pings the chat provider with the default timeout.
func ValidateExpansionConfig(settings *domain.ExpansionSettings) error {
	return NewConfigValidator().ValidateExpansion(settings)
}

func chatConfig(settings *domain.ExpansionSettings) openai.ChatConfig {
	return openai.ChatConfig{
		APIKey:    settings.APIKey,
		BaseURL:   baseURL(settings.Provider, settings.BaseURL),
		Model:     settings.Model,
		CacheSize: settings.CacheSize,
	}
}

// baseURL fills in the local endpoint for Ollama.
func baseURL(provider domain.AIProvider, configured string) string {
	if configured == "" && provider == domain.AIProviderOllama {
		return DefaultOllamaBaseURL
	}
	return configured
}
