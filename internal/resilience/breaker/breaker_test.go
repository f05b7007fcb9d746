package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return New(threshold, timeout, WithClock(clk.Now)), clk
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.False(t, b.IsOpen(), "must stay closed below threshold")
	}
	b.RecordFailure()
	assert.True(t, b.IsOpen())
	assert.Equal(t, Open, b.State())
	assert.Equal(t, 3, b.Failures())
}

func TestBreaker_SuccessResets(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	require.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_AutoResetAfterTimeout(t *testing.T) {
	b, clk := newTestBreaker(2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	require.True(t, b.IsOpen())

	clk.Advance(9 * time.Second)
	assert.True(t, b.IsOpen(), "still open before timeout")

	clk.Advance(time.Second)
	assert.False(t, b.IsOpen(), "probe allowed after timeout")
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, Closed, b.State())

	// failed probe counts from zero
	b.RecordFailure()
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_OpenedAtNotMovedByExtraFailures(t *testing.T) {
	b, clk := newTestBreaker(1, 10*time.Second)

	b.RecordFailure()
	clk.Advance(6 * time.Second)
	b.RecordFailure()
	clk.Advance(5 * time.Second)

	assert.False(t, b.IsOpen(), "timeout is measured from the first opening")
}

func TestBreaker_Defaults(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, DefaultThreshold, b.threshold)
	assert.Equal(t, DefaultResetTimeout, b.resetTimeout)
}

func TestBreaker_Concurrent(t *testing.T) {
	b, _ := newTestBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				b.RecordFailure()
				_ = b.IsOpen()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, b.Failures())
	assert.False(t, b.IsOpen())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closed", Closed.String())
}
