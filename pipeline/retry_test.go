package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-pipeline/stage"
)

func testPolicy() retryPolicy {
	return retryPolicy{budget: 2, baseBackoff: time.Millisecond, timeout: time.Second}
}

var retryable = stage.Capabilities{Retryable: true}

func TestWithRetryReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), "op", retryable, testPolicy(), func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	got, err := withRetry(context.Background(), "op", retryable, testPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", stage.Transientf("op", errors.New("blip"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), "op", retryable, testPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, stage.Transientf("op", errors.New("blip"))
	})
	assert.ErrorContains(t, err, "retry budget exhausted")
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), "op", retryable, testPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, stage.Permanentf("op", errors.New("bad input"))
	})
	assert.True(t, stage.IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestWithRetryNonRetryableGetsOneAttempt(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), "op", stage.Capabilities{}, testPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, stage.Transientf("op", errors.New("blip"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, "op", retryable, testPolicy(), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, stage.Transientf("op", errors.New("blip"))
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
