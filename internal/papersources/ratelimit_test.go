package papersources

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitN calls Wait n times and returns how long that took.
func waitN(t *testing.T, rl *RateLimiter, n int) time.Duration {
	t.Helper()
	start := time.Now()
	for i := 0; i < n; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	return time.Since(start)
}

func TestNewRateLimiter(t *testing.T) {
	t.Run("burst passes without waiting", func(t *testing.T) {
		rl := NewRateLimiter(3, 3)

		require.NotNil(t, rl)
		assert.Less(t, waitN(t, rl, 3), 50*time.Millisecond)
	})

	t.Run("waits for token after burst exhausted", func(t *testing.T) {
		rl := NewRateLimiter(10, 1)

		require.NoError(t, rl.Wait(context.Background()))
		elapsed := waitN(t, rl, 1)

		assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond,
			"should wait for token, waited only %v", elapsed)
	})
}

func TestNewIntervalLimiter(t *testing.T) {
	t.Run("first wait is immediate", func(t *testing.T) {
		rl := NewIntervalLimiter(500 * time.Millisecond)
		assert.Less(t, waitN(t, rl, 1), 50*time.Millisecond)
	})

	t.Run("spaces consecutive waits by the interval", func(t *testing.T) {
		rl := NewIntervalLimiter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, waitN(t, rl, 3), 190*time.Millisecond)
	})

	t.Run("non-positive interval disables pacing", func(t *testing.T) {
		for _, interval := range []time.Duration{0, -time.Second} {
			rl := NewIntervalLimiter(interval)
			assert.Less(t, waitN(t, rl, 100), 50*time.Millisecond)
		}
	})
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("respects context deadline", func(t *testing.T) {
		rl := NewIntervalLimiter(10 * time.Second)
		require.NoError(t, rl.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		assert.Error(t, rl.Wait(ctx))
	})

	t.Run("returns immediately with canceled context", func(t *testing.T) {
		rl := NewIntervalLimiter(10 * time.Second)
		require.NoError(t, rl.Wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		assert.Error(t, rl.Wait(ctx))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})
}

func TestRateLimiter_Concurrency(t *testing.T) {
	t.Run("shared interval limiter serializes concurrent waiters", func(t *testing.T) {
		rl := NewIntervalLimiter(40 * time.Millisecond)
		ctx := context.Background()

		var wg sync.WaitGroup
		start := time.Now()
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, rl.Wait(ctx))
			}()
		}
		wg.Wait()

		// Four events at one per 40ms need at least three intervals.
		assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
	})
}
