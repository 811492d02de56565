// Package ratelimit implements a per-client sliding-window rate limiter.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Limiter tracks request timestamps per client and rejects a request when the
// client already made Limit requests within the trailing Window.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string][]time.Time
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	limit           int
	window          time.Duration
	cleanupInterval time.Duration

	now      func() time.Time
	rejected prometheus.Counter
}

// Config holds rate limiter configuration.
type Config struct {
	// Limit is the number of requests allowed per Window. A ninth request
	// inside a 60s window with the defaults is rejected.
	Limit           int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the limits the API ships with.
func DefaultConfig() Config {
	return Config{
		Limit:           8,
		Window:          60 * time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a sliding-window limiter and starts its cleanup
// goroutine. Call Stop when done.
func NewLimiter(config Config) *Limiter {
	if config.Limit <= 0 || config.Window <= 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &Limiter{
		clients:         make(map[string][]time.Time),
		stopCleanup:     make(chan struct{}),
		limit:           config.Limit,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
	go rl.startCleanup()
	return rl
}

// Register registers the limiter's metrics with the given registerer.
func (rl *Limiter) Register(reg prometheus.Registerer) error {
	return reg.Register(rl.rejected)
}

// Allow records a request from the client and reports whether it fits inside
// the window. Rejected requests are not recorded, so a client hammering the
// API recovers as soon as its oldest allowed request ages out.
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.clients[clientIP][:0]
	for _, ts := range rl.clients[clientIP] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rl.limit {
		rl.clients[clientIP] = recent
		rl.rejected.Inc()
		return false
	}

	rl.clients[clientIP] = append(recent, now)
	return true
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops clients whose every request has aged out, keeping
// the map from growing with one entry per IP ever seen.
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for ip, stamps := range rl.clients {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// ActiveClients returns the number of currently tracked clients.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop shuts down the cleanup goroutine.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware wraps a handler with rate limiting. extractIP decides the client
// key; onLimit writes the rejection response.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				if onLimit != nil {
					onLimit(w, r)
				} else {
					w.Header().Set("Retry-After", "60")
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
