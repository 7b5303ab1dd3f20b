package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tu "github.com/desertthunder/basket/internal/testing"
)

func newTestTracker(clk *tu.Clock) *Tracker {
	return NewTracker(TrackerOptions{Now: clk.Now})
}

func TestTracker(t *testing.T) {
	t.Run("tracked keys are local for five seconds", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)
		assert.False(t, tr.IsLocal("updated-42"), "untracked key")

		tr.Track("updated-42")
		for _, step := range []time.Duration{0, time.Second, 3 * time.Second, 999 * time.Millisecond} {
			clk.Advance(step)
			assert.True(t, tr.IsLocal("updated-42"))
		}

		clk.Advance(time.Millisecond)
		assert.False(t, tr.IsLocal("updated-42"))
	})

	t.Run("IsLocal within and after the window", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)
		tr.Track("updated-42")

		clk.Advance(4900 * time.Millisecond)
		assert.True(t, tr.IsLocal("updated-42"))
		assert.True(t, tr.IsLocal("updated-42"), "IsLocal must not consume")

		clk.Advance(100 * time.Millisecond)
		assert.False(t, tr.IsLocal("updated-42"))
	})

	t.Run("Consume removes on first match", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)
		tr.Track("deleted-7")

		assert.True(t, tr.Consume("deleted-7"))
		assert.False(t, tr.Consume("deleted-7"))
		assert.False(t, tr.IsLocal("deleted-7"))
	})

	t.Run("re-tracking restarts the window", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)
		tr.Track("updated-1")
		clk.Advance(4 * time.Second)
		tr.Track("updated-1")
		clk.Advance(4 * time.Second)

		assert.True(t, tr.IsLocal("updated-1"))
	})

	t.Run("ShouldIgnoreCreate is one-shot per arm", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)

		assert.False(t, tr.ShouldIgnoreCreate(), "unarmed flag")

		tr.IgnoreNextCreate()
		assert.True(t, tr.ShouldIgnoreCreate())
		for range 3 {
			assert.False(t, tr.ShouldIgnoreCreate())
		}

		tr.IgnoreNextCreate()
		assert.True(t, tr.ShouldIgnoreCreate(), "re-armed flag")
	})

	t.Run("create flag expires after three seconds", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)
		tr.IgnoreNextCreate()

		clk.Advance(3 * time.Second)
		assert.False(t, tr.ShouldIgnoreCreate())
	})

	t.Run("Sweep drops expired entries", func(t *testing.T) {
		clk := tu.NewClock()
		tr := newTestTracker(clk)
		tr.Track("updated-1")
		tr.Track("updated-2")
		tr.IgnoreNextCreate()
		clk.Advance(6 * time.Second)
		tr.Track("updated-3")

		assert.Equal(t, 3, tr.Sweep())
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("Reset forgets everything", func(t *testing.T) {
		tr := NewTracker(TrackerOptions{})
		tr.Track("updated-1")
		tr.IgnoreNextCreate()
		tr.Reset()

		assert.Equal(t, 0, tr.Len())
		assert.False(t, tr.ShouldIgnoreCreate())
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "updated-42", ItemKey(EventUpdated, 42))
	assert.Equal(t, "deleted-42", ItemKey(EventDeleted, 42))
	assert.Equal(t, "created-101", ItemKey(EventCreated, 101))
	assert.Equal(t, "list-updated-5", ListKey(EventUpdated, 5))
}
