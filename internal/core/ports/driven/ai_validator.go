package driven

import "github.com/custodia-labs/papercache/internal/core/domain"

// AIConfigValidator validates AI provider configurations by testing
// connectivity to the underlying services.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	// Returns nil if configuration is valid or not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateExpansion pings the configured chat-completion provider.
	// Returns nil if configuration is valid or not configured.
	ValidateExpansion(config *domain.ExpansionSettings) error
}
