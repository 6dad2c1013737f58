package traffic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestObserveFirstSampleIsZero(t *testing.T) {
	e := NewEstimatorWithClock(newFakeClock().Now)
	assert.Equal(t, Rate{}, e.Observe("ether1", 1_000_000, 2_000_000))
}

func TestObserveRate(t *testing.T) {
	clock := newFakeClock()
	e := NewEstimatorWithClock(clock.Now)

	e.Observe("ether1", 1_000_000, 500_000)
	clock.Advance(5 * time.Second)
	rate := e.Observe("ether1", 1_625_000, 812_500)

	assert.InDelta(t, 1.0, rate.Download, 1e-9)
	assert.InDelta(t, 0.5, rate.Upload, 1e-9)
}

func TestObserveCounterReset(t *testing.T) {
	clock := newFakeClock()
	e := NewEstimatorWithClock(clock.Now)

	e.Observe("ether1", 9_000_000, 9_000_000)
	clock.Advance(5 * time.Second)
	rate := e.Observe("ether1", 1_000, 9_625_000)

	assert.Zero(t, rate.Download)
	assert.InDelta(t, 1.0, rate.Upload, 1e-9)

	clock.Advance(5 * time.Second)
	rate = e.Observe("ether1", 626_000, 9_625_000)
	assert.InDelta(t, 1.0, rate.Download, 1e-9, "the reset sample becomes the new baseline")
}

func TestObserveZeroElapsed(t *testing.T) {
	e := NewEstimatorWithClock(newFakeClock().Now)
	e.Observe("ether1", 0, 0)
	assert.Equal(t, Rate{}, e.Observe("ether1", 625_000, 625_000))
}

func TestObserveKeepsInterfacesApart(t *testing.T) {
	clock := newFakeClock()
	e := NewEstimatorWithClock(clock.Now)

	e.Observe("ether1", 0, 0)
	clock.Advance(time.Second)
	assert.Equal(t, Rate{}, e.Observe("ether2", 125_000, 0))

	rate := e.Observe("ether1", 125_000, 0)
	assert.InDelta(t, 1.0, rate.Download, 1e-9)

	s, ok := e.Last("ether2")
	require.True(t, ok)
	assert.EqualValues(t, 125_000, s.RxBytes)

	e.Forget("ether2")
	_, ok = e.Last("ether2")
	assert.False(t, ok)
}

func TestObserveConcurrent(t *testing.T) {
	clock := newFakeClock()
	e := NewEstimatorWithClock(clock.Now)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			for j := uint64(0); j < 100; j++ {
				e.Observe("ether1", n*j, n*j)
			}
		}(uint64(i))
	}
	wg.Wait()

	_, ok := e.Last("ether1")
	assert.True(t, ok)
}
