package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *clock { return &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestMap(t *testing.T) {
	t.Run("Set and Get within ttl", func(t *testing.T) {
		clk := newClock()
		m := New[string, int](Options{Now: clk.Now})
		m.Set("a", 1, 5*time.Second)

		clk.Advance(4999 * time.Millisecond)
		v, ok := m.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("entries vanish at the deadline without a sweep", func(t *testing.T) {
		clk := newClock()
		m := New[string, int](Options{Now: clk.Now})
		m.Set("a", 1, 5*time.Second)

		clk.Advance(5 * time.Second)
		assert.False(t, m.Has("a"))
		assert.Equal(t, 0, m.Len())
		assert.Equal(t, 1, m.size(), "expired entry stays stored until purged")
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clk := newClock()
		m := New[string, int](Options{Now: clk.Now})
		m.Set("a", 1, 0)

		clk.Advance(24 * time.Hour)
		assert.True(t, m.Has("a"))
	})

	t.Run("Take removes on hit", func(t *testing.T) {
		m := New[string, int](Options{})
		m.Set("a", 1, time.Minute)

		v, ok := m.Take("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = m.Take("a")
		assert.False(t, ok)
	})

	t.Run("Take on an expired entry is a miss", func(t *testing.T) {
		clk := newClock()
		m := New[string, int](Options{Now: clk.Now})
		m.Set("a", 1, time.Second)
		clk.Advance(2 * time.Second)

		_, ok := m.Take("a")
		assert.False(t, ok)
		assert.Equal(t, 0, m.size())
	})

	t.Run("PurgeExpired drops only expired entries", func(t *testing.T) {
		clk := newClock()
		m := New[string, int](Options{Now: clk.Now})
		m.Set("short", 1, time.Second)
		m.Set("long", 2, time.Minute)
		clk.Advance(2 * time.Second)

		assert.Equal(t, 1, m.PurgeExpired())
		assert.Equal(t, 1, m.size())
		assert.True(t, m.Has("long"))
	})

	t.Run("Delete and Clear", func(t *testing.T) {
		m := New[string, int](Options{})
		m.Set("a", 1, 0)
		m.Set("b", 2, 0)
		m.Delete("a")
		assert.Equal(t, 1, m.Len())
		m.Clear()
		assert.Equal(t, 0, m.Len())
	})
}

func TestJanitor(t *testing.T) {
	t.Run("sweeps until cancelled", func(t *testing.T) {
		clk := newClock()
		m := New[string, int](Options{Now: clk.Now})
		m.Set("a", 1, time.Second)
		clk.Advance(time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			m.Janitor(ctx, time.Millisecond)
			close(done)
		}()

		assert.Eventually(t, func() bool { return m.size() == 0 }, time.Second, time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("janitor did not stop after cancel")
		}
	})

	t.Run("non-positive interval returns immediately", func(t *testing.T) {
		m := New[string, int](Options{})
		m.Janitor(context.Background(), 0)
	})
}
