package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kariro/kariro/internal/api/response"
)

// maxLimiterEntries bounds the limiter map so an attacker rotating client
// addresses cannot grow it without bound.
const maxLimiterEntries = 10_000

type limiterEntry struct {
	count   int
	resetAt time.Time
}

// Limiter is an in-memory fixed-window rate limiter. State is per-process and
// lost on restart; that is an accepted trade-off for an abuse guard, not a
// billing-grade counter.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]limiterEntry
	window  time.Duration
	max     int
	done    chan struct{}
	once    sync.Once
}

// NewLimiter creates a Limiter allowing max requests per window per key.
func NewLimiter(window time.Duration, max int) *Limiter {
	return &Limiter{
		entries: make(map[string]limiterEntry),
		window:  window,
		max:     max,
		done:    make(chan struct{}),
	}
}

// Allow records a request for key and reports whether it is within the limit,
// along with the remaining allowance and when the window resets.
func (l *Limiter) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.After(entry.resetAt) {
		if !ok && len(l.entries) >= maxLimiterEntries {
			l.evictLocked(now)
		}
		entry = limiterEntry{count: 1, resetAt: now.Add(l.window)}
		l.entries[key] = entry
		return true, l.max - 1, entry.resetAt
	}

	if entry.count >= l.max {
		return false, 0, entry.resetAt
	}

	entry.count++
	l.entries[key] = entry
	return true, l.max - entry.count, entry.resetAt
}

// evictLocked frees space by dropping expired entries, falling back to the
// entry closest to expiry when nothing has expired yet.
func (l *Limiter) evictLocked(now time.Time) {
	var oldestKey string
	var oldestReset time.Time
	evicted := false
	for key, entry := range l.entries {
		if now.After(entry.resetAt) {
			delete(l.entries, key)
			evicted = true
			continue
		}
		if oldestKey == "" || entry.resetAt.Before(oldestReset) {
			oldestKey = key
			oldestReset = entry.resetAt
		}
	}
	if !evicted && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// Start launches the background sweep that clears expired entries.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(l.window)
		defer ticker.Stop()
		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				now := time.Now()
				l.mu.Lock()
				for key, entry := range l.entries {
					if now.After(entry.resetAt) {
						delete(l.entries, key)
					}
				}
				l.mu.Unlock()
			}
		}
	}()
}

// Stop terminates the background sweep.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Limit applies rate limiting keyed on the client address.
func (l *Limiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt := l.Allow(clientKey(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests, please try again later", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
