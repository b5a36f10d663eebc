package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterMinuteWindow(t *testing.T) {
	r := NewRateLimiter(10, 100)
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// Ten sends inside 59 seconds fill the minute budget.
	for i := 0; i < 10; i++ {
		at := start.Add(time.Duration(i*6) * time.Second)
		assert.True(t, r.Allow(at), "send %d should be allowed", i)
		r.Record(at)
	}
	assert.False(t, r.Allow(start.Add(59*time.Second)))

	// 61 seconds after the first send, one slot has aged out.
	assert.True(t, r.Allow(start.Add(61*time.Second)))
}

func TestRateLimiterHourWindow(t *testing.T) {
	r := NewRateLimiter(1000, 3)
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := start.Add(time.Duration(i) * 10 * time.Minute)
		assert.True(t, r.Allow(at))
		r.Record(at)
	}
	assert.False(t, r.Allow(start.Add(50*time.Minute)))
	assert.True(t, r.Allow(start.Add(time.Hour+time.Second)))
}

func TestRateLimiterAllowDoesNotConsume(t *testing.T) {
	r := NewRateLimiter(1, 10)
	now := time.Now()

	assert.True(t, r.Allow(now))
	assert.True(t, r.Allow(now))
	r.Record(now)
	assert.False(t, r.Allow(now))
}
