package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running for the same filter.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrBackfillInProgress indicates an embedding backfill run is already active.
	ErrBackfillInProgress = errors.New("backfill in progress")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Backfill and semantic search are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrExpansionUnavailable indicates the query-expansion collaborator is not configured.
	ErrExpansionUnavailable = errors.New("query expansion unavailable")

	// ErrMalformedResponse indicates a collaborator returned data that failed
	// local validation (wrong vector count or dimensionality, missing fields).
	// The affected batch is treated as failed and is never partially applied.
	ErrMalformedResponse = errors.New("malformed collaborator response")

	// ErrRetriesExhausted indicates a batch kept failing until the attempt
	// ceiling was reached. It wraps the last underlying error.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrRateLimited indicates the remote API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
