package taskpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountdownNilTimeoutNeverHasDeadline(t *testing.T) {
	c := NewCountdown(nil)
	remaining, has := c.Check()
	assert.False(t, has)
	assert.Nil(t, remaining)
}

func TestCountdownCounts_Down(t *testing.T) {
	timeout := 50 * time.Millisecond
	c := NewCountdown(&timeout)

	first, has := c.Check()
	assert.True(t, has)
	assert.LessOrEqual(t, *first, timeout)

	time.Sleep(10 * time.Millisecond)
	second, has := c.Check()
	assert.True(t, has)
	assert.Less(t, *second, *first)
}

func TestCountdownNeverGoesNegative(t *testing.T) {
	timeout := time.Millisecond
	c := NewCountdown(&timeout)
	time.Sleep(20 * time.Millisecond)

	remaining, has := c.Check()
	assert.True(t, has)
	assert.Equal(t, time.Duration(0), *remaining)
}
