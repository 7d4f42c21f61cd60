package ai

import (
	"context"
	"time"

	"github.com/custodia-labs/papercache/internal/adapters/driven/openai"
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings by making one cheap request.
// Unconfigured providers are valid.
type ConfigValidator struct {
	// Timeout bounds each check. Zero means pingTimeout.
	Timeout time.Duration
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{Timeout: pingTimeout}
}

// ValidateEmbedding lists models on the embedding endpoint.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := v.context()
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateExpansion lists models on the chat endpoint.
func (v *ConfigValidator) ValidateExpansion(settings *domain.ExpansionSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	ctx, cancel := v.context()
	defer cancel()
	return openai.NewSummariser(chatConfig(settings), nil).Ping(ctx)
}

func (v *ConfigValidator) context() (context.Context, context.CancelFunc) {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = pingTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
