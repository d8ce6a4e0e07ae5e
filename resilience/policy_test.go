package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return nil
	}, 3, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return expectedErr
	}, 3, time.Millisecond)

	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_Permanent(t *testing.T) {
	attempts := 0
	cause := errors.New("bad request")
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return Permanent(cause)
	}, 5, time.Millisecond)

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
	assert.Nil(t, Permanent(nil))
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond)
	assert.Equal(t, ErrInvalidMaxAttempts, err)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		cancel()
		return errors.New("fail")
	}, 5, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPolicyDefaultsToSingleAttempt(t *testing.T) {
	p := Single("generator")
	assert.Equal(t, 1, p.MaxAttempts())

	attempts := 0
	cause := errors.New("unreachable")
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, attempts)
}

func TestPolicyRetries(t *testing.T) {
	p, err := New("embedder", WithMaxAttempts(3), WithBaseDelay(time.Millisecond))
	require.NoError(t, err)

	attempts := 0
	out, err := Call(context.Background(), p, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
}

func TestPolicyAttemptTimeout(t *testing.T) {
	p, err := New("generator", WithAttemptTimeout(10*time.Millisecond))
	require.NoError(t, err)

	err = p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPolicyRateLimitHonoursContext(t *testing.T) {
	p, err := New("embedder", WithRateLimit(0.001, 1))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Do(ctx, func(ctx context.Context) error { return nil }))

	// the single token is spent; the next wait cannot complete before the deadline
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	called := false
	err = p.Do(short, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New("x", WithMaxAttempts(0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = New("x", WithRateLimit(0, 1))
	assert.ErrorIs(t, err, ErrInvalidRateLimit)
}
