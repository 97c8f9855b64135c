package notify

import (
	"sync"
	"time"
)

// RateLimiter implements rate limiting for notifications
type RateLimiter struct {
	mu        sync.Mutex
	events    map[ChannelType][]time.Time
	interval  time.Duration
	maxEvents int
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing maxEvents per interval and
// channel. A non-positive maxEvents disables limiting.
func NewRateLimiter(interval time.Duration, maxEvents int) *RateLimiter {
	return &RateLimiter{
		events:    make(map[ChannelType][]time.Time),
		interval:  interval,
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// Allow checks if a notification is allowed under rate limits
func (r *RateLimiter) Allow(channel ChannelType) bool {
	if r == nil || r.maxEvents <= 0 || r.interval <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	timestamps := r.events[channel]

	// Clean expired timestamps
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < r.interval {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxEvents {
		r.events[channel] = valid
		return false
	}

	r.events[channel] = append(valid, now)
	return true
}
