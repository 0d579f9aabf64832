package httpapi

import (
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	shopAuth "github.com/MrEthical07/shopAuth"
)

// EdgeConfig controls the coarse per-IP token bucket.
type EdgeConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// DefaultEdgeConfig allows 60 requests per minute per IP with a burst of 30.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		Rate:            rate.Limit(60.0 / 60.0),
		Burst:           30,
		CleanupInterval: 5 * time.Minute,
	}
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// EdgeLimiter throttles requests per client IP before they reach the Engine.
type EdgeLimiter struct {
	cfg EdgeConfig

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewEdgeLimiter creates an EdgeLimiter and starts its cleanup loop. Call
// Stop to end the loop.
func NewEdgeLimiter(cfg EdgeConfig) *EdgeLimiter {
	def := DefaultEdgeConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &EdgeLimiter{
		cfg:      cfg,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *EdgeLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Len returns the number of tracked IPs.
func (l *EdgeLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware answers 429 with Retry-After once an IP exhausts its bucket.
func (l *EdgeLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			retry := int(math.Ceil(1.0 / float64(l.cfg.Rate)))
			if retry < 1 {
				retry = 1
			}
			writeError(w, &shopAuth.Error{
				Kind:       shopAuth.KindRateLimited,
				Message:    shopAuth.ErrRateLimited.Message,
				RetryAfter: retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *EdgeLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

func (l *EdgeLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops IPs idle for more than two cleanup intervals.
func (l *EdgeLimiter) cleanup(now time.Time) {
	ttl := l.cfg.CleanupInterval * 2

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastAccess) > ttl {
			delete(l.limiters, ip)
		}
	}
}
