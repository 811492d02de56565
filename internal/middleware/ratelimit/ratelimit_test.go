package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(cfg)
	t.Cleanup(rl.Stop)

	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }
	return rl, &current
}

func TestAllowExactlyLimitPerWindow(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{Limit: 8, Window: 60 * time.Second})

	for i := 0; i < 8; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("9th request inside the window should be rejected")
	}
}

func TestWindowSlides(t *testing.T) {
	rl, now := newTestLimiter(t, Config{Limit: 8, Window: 60 * time.Second})

	for i := 0; i < 8; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
		*now = now.Add(time.Second)
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("limit reached, should be rejected")
	}

	// Requests were made at t0..t0+7s, so at t0+60.5s only the first has
	// aged out of the 60s window, freeing exactly one slot.
	*now = now.Add(52*time.Second + 500*time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("oldest request aged out, should be allowed again")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("only one slot freed, next request should be rejected")
	}
}

func TestRejectionsDoNotExtendTheWindow(t *testing.T) {
	rl, now := newTestLimiter(t, Config{Limit: 2, Window: 60 * time.Second})

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")
	for i := 0; i < 5; i++ {
		if rl.Allow("10.0.0.1") {
			t.Fatal("should be rejected while window is full")
		}
	}

	*now = now.Add(61 * time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("window elapsed, should recover despite rejected attempts")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{Limit: 1, Window: 60 * time.Second})

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("first client should now be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("second client has its own window")
	}
}

func TestCleanupDropsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(t, Config{Limit: 8, Window: 60 * time.Second})

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	if got := rl.ActiveClients(); got != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", got)
	}

	*now = now.Add(2 * time.Minute)
	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 0 {
		t.Fatalf("expected 0 tracked clients after cleanup, got %d", got)
	}
}

func TestMiddlewareRejectsWithHandler(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{Limit: 1, Window: 60 * time.Second})

	handler := rl.Middleware(
		func(r *http.Request) string { return "10.0.0.1" },
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping/", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", second.Code)
	}
}
