package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func alwaysRetry(error) bool { return true }

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func testConfig() Config {
	return Config{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Retryable: alwaysRetry}
}

func TestDo_FailFailSucceed(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	v, err := DoWithResult(context.Background(), testConfig(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	}, WithSleep(rec.sleep), WithJitter(func() float64 { return 0.5 }))

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, 50*time.Millisecond, rec.calls[0])
	assert.Equal(t, 100*time.Millisecond, rec.calls[1])
}

func TestDo_NonRetryable(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	permanent := errors.New("bad request")

	cfg := testConfig()
	cfg.Retryable = func(err error) bool { return errors.Is(err, errTransient) }

	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return permanent
	}, WithSleep(rec.sleep))

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.calls)
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	errs := []error{errors.New("e1"), errors.New("e2"), errors.New("e3")}

	err := Do(context.Background(), testConfig(), func(context.Context) error {
		e := errs[calls]
		calls++
		return e
	}, WithSleep(rec.sleep))

	assert.Same(t, errs[2], err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.calls, 2, "no sleep after the last attempt")
}

func TestDo_NilRetryableNeverRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{Attempts: 5}, func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{Attempts: 0, Retryable: alwaysRetry}, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	cfg := testConfig()
	cfg.BaseDelay = time.Hour
	cfg.MaxDelay = time.Hour

	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return errTransient
	}, WithJitter(func() float64 { return 0.9 }))

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}
	one := func() float64 { return 1 }

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 350 * time.Millisecond},
		{10, 350 * time.Millisecond},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Backoff(cfg, tc.attempt, one), "attempt %d", tc.attempt)
	}

	assert.Equal(t, time.Duration(0), Backoff(cfg, 3, func() float64 { return 0 }))
	assert.Equal(t, time.Duration(0), Backoff(Config{}, 1, one))
}

func TestBackoff_ZeroMaxDelayKeepsDoubling(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond}
	one := func() float64 { return 1 }

	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 1, one))
	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 2, one))
	assert.Equal(t, 800*time.Millisecond, Backoff(cfg, 4, one))

	huge := Backoff(cfg, 200, func() float64 { return 0.5 })
	assert.Positive(t, huge, "doubling must saturate instead of overflowing")
}
