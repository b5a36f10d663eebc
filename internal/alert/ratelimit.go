package alert

import "time"

// RateLimiter enforces per-minute and per-hour delivery caps with two
// sliding windows. Timestamps are recorded by the caller only after a
// send succeeds, so failed sends do not consume budget.
type RateLimiter struct {
	maxPerMinute int
	maxPerHour   int
	minute       []time.Time
	hour         []time.Time
}

// NewRateLimiter creates a limiter with the given caps.
func NewRateLimiter(maxPerMinute, maxPerHour int) *RateLimiter {
	return &RateLimiter{
		maxPerMinute: maxPerMinute,
		maxPerHour:   maxPerHour,
	}
}

// Allow reports whether a send at now would stay under both caps.
func (r *RateLimiter) Allow(now time.Time) bool {
	r.evict(now)
	return len(r.minute) < r.maxPerMinute && len(r.hour) < r.maxPerHour
}

// Record counts one delivered alert at now.
func (r *RateLimiter) Record(now time.Time) {
	r.evict(now)
	r.minute = append(r.minute, now)
	r.hour = append(r.hour, now)
}

// evict drops timestamps that have aged out of their window.
func (r *RateLimiter) evict(now time.Time) {
	for len(r.minute) > 0 && now.Sub(r.minute[0]) > time.Minute {
		r.minute = r.minute[1:]
	}
	for len(r.hour) > 0 && now.Sub(r.hour[0]) > time.Hour {
		r.hour = r.hour[1:]
	}
}
