package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowRateLimiter allows limit requests per key in each window. A
// key's window starts with its first request.
type FixedWindowRateLimiter struct {
	sync.Mutex
	clients map[string]*window
	limit   int
	window  time.Duration
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewFixedWindowLimiter(limit int, w time.Duration) *FixedWindowRateLimiter {
	return &FixedWindowRateLimiter{
		clients: make(map[string]*window),
		limit:   limit,
		window:  w,
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit. When it is not, the second value is how long until the window
// resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	rl.Lock()
	defer rl.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[key] = &window{start: now, count: 1}
		rl.sweep(now)
		return true, 0
	}
	if w.count < rl.limit {
		w.count++
		return true, 0
	}
	return false, rl.window - now.Sub(w.start)
}

// sweep drops expired windows; called with the lock held.
func (rl *FixedWindowRateLimiter) sweep(now time.Time) {
	if len(rl.clients) < 1024 {
		return
	}
	for k, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, k)
		}
	}
}
