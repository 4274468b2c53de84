package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func admit(l *Limiter, key string) bool {
	return !l.TryAdmit(key).Limited
}

func TestLimiterWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxPerWindow: 5, Window: time.Minute, Enabled: true}, WithClock(clock.Now))
	key := Key("data_source_sync_failed", "ds-1")

	for i := 0; i < 5; i++ {
		assert.True(t, admit(l, key), "admission %d", i+1)
	}
	d := l.Check(key)
	assert.True(t, d.Limited)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.ResetIn)

	// window 경계(정확히 windowMs)에서는 아직 같은 window
	clock.Advance(time.Minute)
	assert.True(t, l.Check(key).Limited)

	clock.Advance(time.Millisecond)
	d = l.Check(key)
	assert.False(t, d.Limited)
	assert.Equal(t, 5, d.Remaining)
}

func TestLimiterCheckDoesNotRecord(t *testing.T) {
	l := New(Config{MaxPerWindow: 1, Window: time.Minute, Enabled: true})
	key := Key("device_offline", "dev-1")

	for i := 0; i < 10; i++ {
		assert.False(t, l.Check(key).Limited)
	}
	l.RecordAdmission(key)
	assert.True(t, l.Check(key).Limited)
}

func TestLimiterPerSourceKeys(t *testing.T) {
	l := New(Config{MaxPerWindow: 5, Window: time.Minute, Enabled: true})

	for i := 0; i < 6; i++ {
		key := Key("data_source_sync_failed", string(rune('a'+i)))
		assert.True(t, admit(l, key))
	}

	same := Key("data_source_sync_failed", "single")
	admitted := 0
	for i := 0; i < 6; i++ {
		if admit(l, same) {
			admitted++
		}
	}
	assert.Equal(t, 5, admitted)
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{MaxPerWindow: 1, Window: time.Minute, Enabled: false})
	key := Key("device_error", "dev-1")
	for i := 0; i < 3; i++ {
		assert.True(t, admit(l, key))
	}
	assert.Equal(t, 0, l.Len())

	l.SetConfig(Config{MaxPerWindow: 1, Window: time.Minute, Enabled: true})
	assert.True(t, admit(l, key))
	assert.False(t, admit(l, key))

	l.Reset()
	assert.True(t, admit(l, key))
}

func TestKeyDefaultsToGlobal(t *testing.T) {
	assert.Equal(t, "api_rate_limit:global", Key("api_rate_limit", ""))
}

func TestLimiterSweep(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxPerWindow: 5, Window: time.Minute, Enabled: true}, WithClock(clock.Now))

	l.Check(Key("device_offline", "old"))
	clock.Advance(90 * time.Second)
	l.Check(Key("device_offline", "recent"))
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestLimiterConcurrentAdmissions(t *testing.T) {
	l := New(Config{MaxPerWindow: 1000, Window: time.Hour, Enabled: true})
	key := Key("device_error", "dev-1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.RecordAdmission(key)
				l.Check(key)
			}
		}()
	}
	// sweep이 동시에 돌아도 race 없이 동작해야 함
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			l.Sweep()
		}
	}()
	wg.Wait()

	assert.Equal(t, 500, 1000-l.Check(key).Remaining)
}

func TestLimiterTryAdmitIsAtomic(t *testing.T) {
	l := New(Config{MaxPerWindow: 5, Window: time.Hour, Enabled: true})
	key := Key("device_offline", "dev-1")

	start := make(chan struct{})
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !l.TryAdmit(key).Limited {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 5, admitted.Load())
	d := l.Check(key)
	assert.True(t, d.Limited)
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiterTryAdmitDoesNotCountDenials(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxPerWindow: 2, Window: time.Minute, Enabled: true}, WithClock(clock.Now))
	key := Key("device_error", "dev-1")

	first := l.TryAdmit(key)
	assert.False(t, first.Limited)
	assert.Equal(t, 1, first.Remaining)

	// 마지막 허용분도 Limited가 아님
	last := l.TryAdmit(key)
	assert.False(t, last.Limited)
	assert.Equal(t, 0, last.Remaining)

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryAdmit(key).Limited)
	}

	clock.Advance(time.Minute + time.Millisecond)
	assert.False(t, l.TryAdmit(key).Limited)
	assert.Equal(t, 1, l.Check(key).Remaining)
}

func TestLimiterStartStop(t *testing.T) {
	clock := newFakeClock()
	l := New(Config{MaxPerWindow: 5, Window: time.Millisecond, Enabled: true},
		WithClock(clock.Now), WithSweepInterval(time.Millisecond))

	l.Check(Key("device_offline", "dev-1"))
	clock.Advance(time.Second)

	l.Start(context.Background())
	require.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, time.Millisecond)
	l.Stop()
	l.Stop()
}
