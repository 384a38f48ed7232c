package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter implements a sliding window limit per client
type RateLimiter struct {
	attempts   map[string][]time.Time
	limit      int
	window     time.Duration
	mu         sync.Mutex
	cleanupInt time.Duration
	lastClean  time.Time
	now        func() time.Time
}

// NewRateLimiter creates a new rate limiter allowing limit calls per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:   make(map[string][]time.Time),
		limit:      limit,
		window:     window,
		cleanupInt: time.Minute * 5,
		lastClean:  time.Now(),
		now:        time.Now,
	}
}

// Allow records a call for clientID and reports whether it is within the limit.
// Rejected calls are not recorded.
func (r *RateLimiter) Allow(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// Clean up old entries periodically
	if now.Sub(r.lastClean) > r.cleanupInt {
		r.cleanup(now)
		r.lastClean = now
	}

	cutoff := now.Add(-r.window)
	valid := r.attempts[clientID][:0]
	for _, t := range r.attempts[clientID] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= r.limit {
		r.attempts[clientID] = valid
		return false
	}
	r.attempts[clientID] = append(valid, now)
	return true
}

// cleanup removes old entries
func (r *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-r.window)
	for clientID, attempts := range r.attempts {
		var valid []time.Time
		for _, t := range attempts {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) > 0 {
			r.attempts[clientID] = valid
		} else {
			delete(r.attempts, clientID)
		}
	}
}

// Limit rejects requests over the limit with 429. Clients are keyed by
// remote IP.
func (r *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodOptions && !r.Allow(clientIP(req)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(r.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
