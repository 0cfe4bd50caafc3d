package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	base := time.Now()
	rl.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("doctor-1"))
	}
	assert.False(t, rl.Allow("doctor-1"))

	// Budgets are per principal
	assert.True(t, rl.Allow("doctor-2"))

	remaining, limit := rl.Remaining("doctor-1")
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 3, limit)
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	base := time.Now()
	rl.now = func() time.Time { return base }

	assert.True(t, rl.Allow("doctor-1"))
	assert.True(t, rl.Allow("doctor-1"))
	assert.False(t, rl.Allow("doctor-1"))

	// Half the period back refills half the budget
	rl.now = func() time.Time { return base.Add(30 * time.Second) }
	assert.True(t, rl.Allow("doctor-1"))
	assert.False(t, rl.Allow("doctor-1"))

	// A full period restores the whole budget
	rl.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.True(t, rl.Allow("doctor-1"))
	assert.True(t, rl.Allow("doctor-1"))
	assert.False(t, rl.Allow("doctor-1"))
}
