package pipeline

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
)

// retryResult reports how many attempts an external-call unit consumed, so
// the run's step record can expose it.
type retryResult struct {
	Attempts int
	Err      error
}

// withRetry runs op up to the attempt budget with exponential backoff and
// jitter. Permanent provider errors stop immediately; context cancellation
// stops between attempts.
func withRetry(ctx context.Context, op func() error) retryResult {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = config.RetryBaseInterval
	exponentialBackoff.MaxInterval = config.RetryMaxInterval
	exponentialBackoff.RandomizationFactor = config.RetryJitterFactor

	policy := backoff.WithContext(
		backoff.WithMaxRetries(exponentialBackoff, uint64(config.RetryMaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if embedding.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	return retryResult{Attempts: attempts, Err: err}
}
