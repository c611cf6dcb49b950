package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"trend-pipeline/stage"
)

// retryPolicy bounds automatic retries for one adapter call.
type retryPolicy struct {
	budget      int           // extra attempts after the first
	baseBackoff time.Duration // doubles per attempt
	timeout     time.Duration // per-attempt deadline
}

// withRetry runs fn under the adapter's declared policy: a per-attempt
// timeout, bounded retries with exponential backoff for transient
// failures, and an immediate stop on permanent errors or when the adapter
// declared itself non-retryable. Exceeding the attempt timeout counts as
// a transient failure.
func withRetry[T any](ctx context.Context, name string, caps stage.Capabilities, policy retryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := 1
	if caps.Retryable {
		attempts += policy.budget
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if policy.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.timeout)
		}
		val, err := fn(attemptCtx)
		cancel()

		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// Run-level cancellation, not an adapter failure.
			return zero, ctx.Err()
		}
		if stage.IsPermanent(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		backoff := policy.baseBackoff << (attempt - 1)
		log.Printf("⚠️ %s attempt %d/%d failed: %v (retrying in %s)", name, attempt, attempts, err, backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("%s: retry budget exhausted: %w", name, lastErr)
}
