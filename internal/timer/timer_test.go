package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopOnNeverStartedReturnsZero(t *testing.T) {
	tm := New()
	_, elapsed := tm.Stop()
	assert.Equal(t, time.Duration(0), elapsed)
}

func TestStartIsIdempotent(t *testing.T) {
	tm := New()
	tm.Start()
	first := tm.Elapsed()
	time.Sleep(5 * time.Millisecond)
	tm.Start()
	second := tm.Elapsed()
	assert.GreaterOrEqual(t, second, first)
	assert.True(t, tm.Running())
}

func TestStopReturnsElapsedAndClears(t *testing.T) {
	tm := New()
	tm.Start()
	time.Sleep(10 * time.Millisecond)
	_, elapsed := tm.Stop()

	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.False(t, tm.Running())
	assert.Equal(t, time.Duration(0), tm.Elapsed())
}

func TestElapsedZeroWhenStopped(t *testing.T) {
	tm := New()
	assert.Equal(t, time.Duration(0), tm.Elapsed())
}
