package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Embedding limits.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultMaxBatchSize is the number of texts sent per request.
	DefaultMaxBatchSize = 20

	// DefaultMaxTextLength is the per-text character limit.
	DefaultMaxTextLength = 8000

	// fallbackDimensions is used for models missing from the dimension table.
	fallbackDimensions = 1536
)

// EmbeddingConfig holds configuration for the embedding service.
type EmbeddingConfig struct {
	// APIKey is the API key (required for OpenAI, ignored by Ollama).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the embedding model (default: text-embedding-3-small).
	Model string

	// Dimensions overrides the dimension table for the model.
	Dimensions int

	// MaxBatchSize caps texts per request (default: 20).
	MaxBatchSize int

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// EmbeddingService generates embeddings through an OpenAI-compatible API.
type EmbeddingService struct {
	client       *openai.Client
	model        string
	dimensions   int
	maxBatchSize int
	sendDims     bool
	logger       *zap.Logger
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg EmbeddingConfig) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > DefaultMaxBatchSize {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		dimensions, ok = domain.EmbeddingDimensions()[cfg.Model]
		if !ok {
			dimensions = fallbackDimensions
		}
	}

	return &EmbeddingService{
		client:       newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:        cfg.Model,
		dimensions:   dimensions,
		maxBatchSize: cfg.MaxBatchSize,
		// Only text-embedding-3-* accept a dimensions parameter.
		sendDims: strings.HasPrefix(cfg.Model, "text-embedding-3-"),
		logger:   logger.Zap().Named("embedding"),
	}
}

// Embed generates a vector for one text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	batch, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch.Vectors[0], nil
}

// EmbedBatch generates vectors for up to MaxBatchSize texts in one request.
// The vectors are returned in input order and are validated for count
// and dimensionality.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) (driven.EmbeddingBatch, error) {
	if len(texts) == 0 {
		return driven.EmbeddingBatch{Model: s.model}, nil
	}
	if len(texts) > s.maxBatchSize {
		return driven.EmbeddingBatch{}, fmt.Errorf("%w: %d texts exceed batch limit %d",
			domain.ErrInvalidInput, len(texts), s.maxBatchSize)
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = truncateRunes(text, DefaultMaxTextLength)
	}

	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          openai.EmbeddingModel(s.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if s.sendDims {
		req.Dimensions = s.dimensions
	}

	start := time.Now()
	resp, err := s.client.CreateEmbeddings(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return driven.EmbeddingBatch{}, wrapAPIError("create embeddings", err)
	}

	vectors, err := s.orderVectors(resp.Data, len(texts))
	if err != nil {
		return driven.EmbeddingBatch{}, err
	}

	s.logger.Debug("embedded batch",
		zap.String("model", s.model),
		zap.Int("texts", len(texts)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Duration("latency", latency),
	)

	model := string(resp.Model)
	if model == "" {
		model = s.model
	}
	return driven.EmbeddingBatch{Vectors: vectors, Model: model, Latency: latency}, nil
}

// orderVectors places each embedding at its response index.
func (s *EmbeddingService) orderVectors(data []openai.Embedding, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrMalformedResponse, len(data), want)
	}

	vectors := make([][]float32, want)
	for _, d := range data {
		if d.Index < 0 || d.Index >= want || vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", domain.ErrMalformedResponse, d.Index)
		}
		if len(d.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d",
				domain.ErrMalformedResponse, d.Index, len(d.Embedding), s.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// MaxBatchSize returns the number of texts accepted per request.
func (s *EmbeddingService) MaxBatchSize() int {
	return s.maxBatchSize
}

// MaxTextLength returns the per-text character limit.
func (s *EmbeddingService) MaxTextLength() int {
	return DefaultMaxTextLength
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by listing models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return wrapAPIError("ping", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
