package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyForKnownKind(t *testing.T) {
	p := PolicyFor(AudioCaptureFailed)
	assert.Equal(t, ActionFatal, p.Action)
}

func TestPolicyForUnknownKindDefaultsToSpeakAndReset(t *testing.T) {
	p := PolicyFor(ErrorKind("totally_unknown"))
	assert.Equal(t, ActionSpeakErrorAndReset, p.Action)
}

func TestWrapAndKindOf(t *testing.T) {
	err := Wrap(SttEmpty, errors.New("no speech"))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, SttEmpty, kind)
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(SttEmpty, nil))
}

func TestKindOfUntypedError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	failing := func() error { return errors.New("boom") }

	cb.Execute(failing)
	assert.Equal(t, StateClosed, cb.State(), "expected closed after 1 failure")

	cb.Execute(failing)
	assert.Equal(t, StateOpen, cb.State(), "expected open after 2 failures")

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Millisecond, HalfOpenMax: 1})
	cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State(), "expected open after first failure")

	time.Sleep(2 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State(), "expected half-open once reset timeout elapsed")

	cb.Execute(func() error { return nil })
	assert.Equal(t, StateClosed, cb.State(), "expected closed after successful probe")
}

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), BackoffConfig{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxRetries: 3}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	err := Retry(context.Background(), BackoffConfig{Base: time.Millisecond, Cap: time.Millisecond, MaxRetries: 2}, func(ctx context.Context) error {
		return errors.New("always fails")
	})
	assert.Error(t, err)
}

func TestRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, BackoffConfig{}, func(ctx context.Context) error {
		return errors.New("should not be retried")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelayRespectsCapAndIsNonNegative(t *testing.T) {
	cfg := BackoffConfig{Base: time.Second, Cap: 2 * time.Second}
	for attempt := 0; attempt < 10; attempt++ {
		d := cfg.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, cfg.Cap)
	}
}
