package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// newBackOff builds the exponential schedule for one batch.
// Attempts are bounded by the policy, never by elapsed time.
func newBackOff(ctx context.Context, policy domain.RetryPolicy) backoff.BackOff {
	defaults := domain.DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaults.InitialInterval
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = defaults.Multiplier
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1)), ctx)
}

// retryBatch runs op until it succeeds, fails permanently, exhausts the
// policy, or ctx is done. Invalid input is never retried. Exhaustion is
// reported as domain.ErrRetriesExhausted wrapping the last error; a done
// context is reported as the context's error.
func retryBatch[T any](
	ctx context.Context,
	policy domain.RetryPolicy,
	op func() (T, error),
	onRetry func(err error, wait time.Duration),
) (T, error) {
	attempts := 0
	wrapped := func() (T, error) {
		attempts++
		result, err := op()
		if err != nil && errors.Is(err, domain.ErrInvalidInput) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	result, err := backoff.RetryNotifyWithData(wrapped, newBackOff(ctx, policy), onRetry)
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return result, err
	}
	return result, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempts, err)
}
