// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"time"
)

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, embedding backfill is disabled.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama or any OpenAI-compatible inference server
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	// Vectors are returned in input order. Callers must not exceed MaxBatchSize.
	EmbedBatch(ctx context.Context, texts []string) (EmbeddingBatch, error)

	// Dimensions returns the embedding vector size (e.g., 768, 1536, 3072).
	Dimensions() int

	// MaxBatchSize returns the maximum number of texts per EmbedBatch call.
	MaxBatchSize() int

	// MaxTextLength returns the maximum number of characters per text.
	MaxTextLength() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingBatch is the response to one EmbedBatch call.
type EmbeddingBatch struct {
	// Vectors holds one vector per input text, in input order.
	Vectors [][]float32

	// Model is the model that produced the vectors.
	Model string

	// Latency is the provider round-trip time.
	Latency time.Duration
}
