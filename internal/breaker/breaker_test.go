// Copyright 2025 James Ross
package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTransitionsClosedOpenHalfOpenClosed(t *testing.T) {
	cb := New("itemdb", 2*time.Second, 200*time.Millisecond, 0.5, 2)
	assert.Equal(t, Closed, cb.State())

	cb.Record(false)
	cb.Record(false)
	assert.Equal(t, Open, cb.State())

	assert.False(t, cb.Allow(), "should not allow until cooldown elapses")

	time.Sleep(250 * time.Millisecond)
	assert.True(t, cb.Allow(), "should allow exactly one probe once in half-open")

	cb.Record(true)
	assert.Equal(t, Closed, cb.State())
}
