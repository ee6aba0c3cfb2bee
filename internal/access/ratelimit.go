package access

import (
	"sync"
	"time"

	"github.com/systmms/credvault/pkg/credential"
)

// DefaultRateLimit bounds attempts per (user, credential key) per window
// when configuration does not set one.
const (
	DefaultRateLimit  = 60
	DefaultRateWindow = time.Minute
)

type stateKey struct {
	user string
	key  string
}

type windowState struct {
	count       int
	windowStart time.Time
}

// RateLimiter counts access attempts per (user, credential key) in
// fixed wall-clock windows. Once the count reaches the threshold, further
// attempts are rejected until the window elapses; the state resets on
// window expiry, never on a successful access. Windows are wall-clock
// bounded and independent of any request's lifetime.
type RateLimiter struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	states    map[stateKey]*windowState
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing threshold attempts per window.
// Non-positive arguments select the defaults.
func NewRateLimiter(threshold int, window time.Duration) *RateLimiter {
	if threshold <= 0 {
		threshold = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		threshold: threshold,
		window:    window,
		states:    make(map[stateKey]*windowState),
		now:       time.Now,
	}
}

// SetClock overrides the limiter's time source for tests.
func (r *RateLimiter) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Check reports whether another attempt is currently allowed for the pair.
// It does not count the attempt; callers record it with Record once the
// request proceeds past the rate check.
func (r *RateLimiter) Check(user, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stateLocked(user, key)
	if s.count >= r.threshold {
		return credential.RateLimitError{
			User:       user,
			Key:        key,
			RetryAfter: s.windowStart.Add(r.window).Sub(r.now()),
		}
	}
	return nil
}

// Record counts one attempt against the pair's current window. Successful
// accesses count too; repeated legitimate reads cannot be used to enumerate
// credentials without tripping the limit.
func (r *RateLimiter) Record(user, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stateLocked(user, key)
	s.count++
}

// stateLocked returns the pair's window state, starting a fresh window if
// the previous one has elapsed. Callers hold r.mu.
func (r *RateLimiter) stateLocked(user, key string) *windowState {
	k := stateKey{user: user, key: key}
	now := r.now()

	s, ok := r.states[k]
	if !ok {
		s = &windowState{windowStart: now}
		r.states[k] = s
		return s
	}
	if now.Sub(s.windowStart) >= r.window {
		s.count = 0
		s.windowStart = now
	}
	return s
}
