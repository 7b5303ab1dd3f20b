package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	t.Run("doubles from the base interval", func(t *testing.T) {
		b := time.Second
		want := []time.Duration{b, 2 * b, 4 * b, 8 * b, 16 * b}
		for attempt, w := range want {
			assert.Equal(t, w, Backoff(b, attempt, 30*time.Second), "attempt %d", attempt)
		}
	})

	t.Run("caps at the limit", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, Backoff(time.Second, 5, 30*time.Second))
		assert.Equal(t, 30*time.Second, Backoff(10*time.Second, 2, 30*time.Second))
		assert.Equal(t, 30*time.Second, Backoff(time.Second, 200, 30*time.Second))
	})

	t.Run("degenerate inputs", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Backoff(0, 3, 30*time.Second))
		assert.Equal(t, time.Second, Backoff(time.Second, -1, 30*time.Second))
	})
}
