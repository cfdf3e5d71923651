package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts label requests per client in fixed minute, hour and
// day windows. A zero limit disables that window.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	perHour   int
	perDay    int

	now     func() time.Time
	clients map[string]*clientUsage
}

type clientUsage struct {
	minuteStart time.Time
	hourStart   time.Time
	day         time.Time // midnight of the current day
	minute      int
	hour        int
	today       int
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	LastMinute int
	LastHour   int
	Today      int
}

// NewRateLimiter creates a limiter with the given window limits.
func NewRateLimiter(perMinute, perHour, perDay int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		perDay:    perDay,
		now:       time.Now,
		clients:   make(map[string]*clientUsage),
	}
}

// Allow records a request from client, or returns a *RateLimitError or
// *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.clients[client]
	if u == nil {
		u = &clientUsage{minuteStart: now, hourStart: now, day: midnight(now)}
		rl.clients[client] = u
	}
	u.roll(now)

	if rl.perMinute > 0 && u.minute >= rl.perMinute {
		return &RateLimitError{Type: "minute", Limit: rl.perMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.perHour > 0 && u.hour >= rl.perHour {
		return &RateLimitError{Type: "hour", Limit: rl.perHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	if rl.perDay > 0 && u.today >= rl.perDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  rl.perDay,
			Used:   u.today,
			Resets: u.day.AddDate(0, 0, 1),
		}
	}

	u.minute++
	u.hour++
	u.today++
	return nil
}

func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart = now
		u.minute = 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart = now
		u.hour = 0
	}
	if d := midnight(now); !d.Equal(u.day) {
		u.day = d
		u.today = 0
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Usage returns the counters of client.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[client]
	if !ok {
		return Usage{}
	}
	return Usage{LastMinute: u.minute, LastHour: u.hour, Today: u.today}
}

// Prune drops clients idle for longer than a day.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for id, u := range rl.clients {
		if now.Sub(u.minuteStart) > 24*time.Hour {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

// RateLimitError reports an exceeded minute or hour window.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Type   string
	Limit  int
	Used   int
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
