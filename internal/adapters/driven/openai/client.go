// Package openai provides embedding, query-expansion and summary adapters
// for OpenAI-compatible APIs. Ollama is reached through its /v1 endpoint.
package openai

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultTimeout = 60 * time.Second
)

// newClient creates a go-openai client for the given endpoint.
// Local endpoints accept any key, so an empty key is replaced.
func newClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	if apiKey == "" {
		apiKey = "unused"
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// wrapAPIError maps go-openai errors onto domain errors.
// 429 becomes ErrRateLimited and 400 becomes ErrInvalidInput so retry
// policies can tell transient failures from permanent ones.
func wrapAPIError(op string, err error) error {
	status := 0
	message := err.Error()

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		message = string(reqErr.Body)
	}

	switch status {
	case 0:
		return fmt.Errorf("openai: %s: %w", op, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("openai: %s: status %d: %s: %w", op, status, message, domain.ErrRateLimited)
	case http.StatusBadRequest:
		return fmt.Errorf("openai: %s: status %d: %s: %w", op, status, message, domain.ErrInvalidInput)
	default:
		return fmt.Errorf("openai: %s: status %d: %s", op, status, message)
	}
}
