package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemory_SlidingWindow(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(0)
	m.now = c.now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "draft:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "event %d", i+1)
	}
	ok, _ := m.Allow(ctx, "draft:u1", 3, time.Minute)
	assert.False(t, ok)

	// other keys are independent
	ok, _ = m.Allow(ctx, "draft:u2", 3, time.Minute)
	assert.True(t, ok)

	c.advance(61 * time.Second)
	ok, _ = m.Allow(ctx, "draft:u1", 3, time.Minute)
	assert.True(t, ok)
}

func TestMemory_Unlimited(t *testing.T) {
	m := NewMemory(0)
	for i := 0; i < 100; i++ {
		ok, err := m.Allow(context.Background(), "k", 0, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := m.Allow(context.Background(), "shared", 10, time.Minute)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestMemory_Purge(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(0)
	m.now = c.now
	for i := 0; i < 5; i++ {
		_, _ = m.Allow(context.Background(), fmt.Sprintf("k%d", i), 1, time.Minute)
	}
	c.advance(2 * time.Hour)
	m.purge(time.Hour)
	assert.Empty(t, m.events)
}

func TestMemory_StopIsIdempotent(t *testing.T) {
	m := NewMemory(time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestHostLimiter_PacesPerHost(t *testing.T) {
	hl := NewHostLimiter(1000, 1)
	ctx := context.Background()

	require.NoError(t, hl.WaitURL(ctx, "https://acme.wd5.myworkdayjobs.com/job/1"))
	require.NoError(t, hl.WaitURL(ctx, "https://boards.greenhouse.io/acme"))
	require.NoError(t, hl.WaitURL(ctx, "not a url"))
	assert.Len(t, hl.m, 3)
}

func TestHostLimiter_CancelledContext(t *testing.T) {
	hl := NewHostLimiter(0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, hl.WaitURL(ctx, "https://example.com"))
	cancel()
	assert.Error(t, hl.WaitURL(ctx, "https://example.com"))
}

func TestHostLimiter_Disabled(t *testing.T) {
	hl := NewHostLimiter(0, 0)
	for i := 0; i < 20; i++ {
		require.NoError(t, hl.WaitURL(context.Background(), "https://example.com"))
	}
}
