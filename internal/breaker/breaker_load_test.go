// Copyright 2025 James Ross
package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBreakerHalfOpenSingleProbeUnderLoad simulates many goroutines racing
// to apply a transaction against the item database right as the breaker's
// cooldown expires: at most one of them may be let through as the HalfOpen
// probe, however many call Allow concurrently.
func TestBreakerHalfOpenSingleProbeUnderLoad(t *testing.T) {
	cb := New("itemdb", 20*time.Millisecond, 50*time.Millisecond, 0.5, 2)
	require.Equal(t, Closed, cb.State())

	cb.Record(false)
	cb.Record(false)
	require.Equal(t, Open, cb.State(), "expected open after 2 failures")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, concurrentAllows(cb, 100))

	cb.Record(false)
	require.Equal(t, Open, cb.State(), "expected open after failed probe")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, concurrentAllows(cb, 100))

	cb.Record(true)
	assert.Equal(t, Closed, cb.State(), "expected closed after successful probe")
}

// concurrentAllows fires n concurrent Allow calls against cb and returns how
// many returned true.
func concurrentAllows(cb *CircuitBreaker, n int) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if cb.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return allowed
}
