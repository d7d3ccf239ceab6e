package http

import (
	"sync"
	"time"
)

// rateLimiter caps mutating requests per client IP using fixed one-minute
// windows, with burst headroom on top of the steady rate. Entries for idle
// clients are swept in the background.
type rateLimiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	windows map[string]*window

	stop chan struct{}
	once sync.Once
}

// window counts requests since windowStart; the count resets when a request
// arrives more than a minute after the window opened.
type window struct {
	start time.Time
	count int
}

func newRateLimiter(perMinute, burst int) *rateLimiter {
	rl := &rateLimiter{
		perMinute: perMinute,
		burst:     burst,
		windows:   make(map[string]*window),
		stop:      make(chan struct{}),
	}
	go rl.sweepLoop(5 * time.Minute)
	return rl
}

// allow records a request for clientIP and reports whether it fits in the
// current window.
func (rl *rateLimiter) allow(clientIP string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.windows[clientIP]
	if w == nil || now.Sub(w.start) > time.Minute {
		rl.windows[clientIP] = &window{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= rl.perMinute+rl.burst
}

func (rl *rateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now().Add(-10 * time.Minute))
		case <-rl.stop:
			return
		}
	}
}

// sweep drops windows that opened before the cutoff.
func (rl *rateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, ip)
		}
	}
}

func (rl *rateLimiter) shutdown() {
	rl.once.Do(func() { close(rl.stop) })
}
