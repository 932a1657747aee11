/*
Package limiter provides keyed token-bucket rate limiting.

A KeyedLimiter hands out one rate.Limiter per key (client IP for HTTP and WebSocket handshakes,
connection handle for chat events). A background goroutine drops limiters whose bucket has refilled,
so idle keys do not accumulate.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/resp"
)

// DefaultCleanupInterval is how often idle limiters are swept.
const DefaultCleanupInterval = 3 * time.Minute

// KeyedLimiter rate limits events per string key.
type KeyedLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int

	stop     chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter creates a limiter allowing r events per second with burst b for each key,
// and starts the idle sweep.
func NewKeyedLimiter(r rate.Limit, b int) *KeyedLimiter {
	l := &KeyedLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
	}

	go l.sweepLoop(DefaultCleanupInterval)

	return l
}

// Get returns the limiter for key, creating it on first use.
func (l *KeyedLimiter) Get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limits[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists = l.limits[key]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limits[key] = limiter
	}

	return limiter
}

// Allow reports whether one event for key may happen now.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.Get(key).Allow()
}

// Forget drops the limiter for key, e.g. when a connection closes.
func (l *KeyedLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limits, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limits)
}

// Stop terminates the sweep goroutine. It is safe to call more than once.
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *KeyedLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := l.sweep(time.Now())
			logx.Debug("Rate limiter sweep finished", "removed", removed, "active", l.Len())
		case <-l.stop:
			return
		}
	}
}

// sweep removes limiters whose bucket is full at now and returns how many were removed.
func (l *KeyedLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, limiter := range l.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(l.limits, key)
			removed++
		}
	}
	return removed
}

// ClientIP extracts the host part of r.RemoteAddr (already rewritten by chi's RealIP middleware).
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		ip = "unknown_ip"
	}

	return ip
}

// Middleware rejects requests over the per-IP limit with ErrRateLimitExceeded.
func (l *KeyedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
