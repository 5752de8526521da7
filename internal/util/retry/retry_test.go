package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(5 * time.Millisecond)}
}

func TestWithExponentialBackoff_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fast()...)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoff_MaxAttempts(t *testing.T) {
	t.Parallel()
	attempts := 0
	persistent := errors.New("persistent error")
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return persistent
	}, append(fast(), WithMaxAttempts(4))...)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, persistent)
	assert.Equal(t, 4, attempts)
}

func TestWithExponentialBackoff_FatalStopsImmediately(t *testing.T) {
	t.Parallel()
	attempts := 0
	root := errors.New("bad request")
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(root)
	}, fast()...)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_RetryIf(t *testing.T) {
	t.Parallel()
	retryable := errors.New("not yet")
	other := errors.New("boom")
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return retryable
		}
		return other
	}, append(fast(), WithRetryIf(func(err error) bool { return errors.Is(err, retryable) }))...)

	assert.Same(t, other, err)
	assert.Equal(t, 2, attempts)
}

func TestWithExponentialBackoff_MaxElapsed(t *testing.T) {
	t.Parallel()
	start := time.Now()
	err := WithExponentialBackoff(context.Background(), func() error {
		return errors.New("never ready")
	},
		WithMaxRetries(1000),
		WithInitialDelay(5*time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithMaxElapsed(50*time.Millisecond),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithExponentialBackoff(ctx, func() error {
		attempts++
		cancel()
		return errors.New("temporary")
	}, WithInitialDelay(time.Second))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_OnRetry(t *testing.T) {
	t.Parallel()
	var seen []int
	_ = WithExponentialBackoff(context.Background(), func() error {
		return errors.New("fail")
	}, append(fast(), WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		seen = append(seen, attempt)
	}))...)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestFatal_Nil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Fatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
}
