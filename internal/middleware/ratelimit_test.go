package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	var buf bytes.Buffer
	rl := NewRateLimiter(cfg, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(rl.Stop)
	return rl
}

func serveFrom(h http.Handler, method, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/users", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 2, GeneralBurst: 5,
		MutationRate: 1, MutationBurst: 5,
		CleanupInterval: time.Minute,
	})
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 5; i++ {
		if w := serveFrom(handler, http.MethodGet, "192.0.2.1:1234"); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 2,
		MutationRate: 1, MutationBurst: 2,
		CleanupInterval: time.Minute,
	})
	handler := rl.Middleware()(okHandler())

	serveFrom(handler, http.MethodGet, "192.0.2.1:1234")
	serveFrom(handler, http.MethodGet, "192.0.2.1:1234")
	w := serveFrom(handler, http.MethodGet, "192.0.2.1:1234")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("429 response should be JSON: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 1,
		MutationRate: 1, MutationBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.Middleware()(okHandler())

	serveFrom(handler, http.MethodGet, "192.0.2.1:1234")
	if w := serveFrom(handler, http.MethodGet, "192.0.2.1:5678"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP with another port should share the limit, status = %d", w.Code)
	}
	if w := serveFrom(handler, http.MethodGet, "192.0.2.2:1234"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", got)
	}
}

func TestRateLimitMiddleware_MutationLimitIsStricter(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 10, GeneralBurst: 10,
		MutationRate: 0.01, MutationBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.Middleware()(okHandler())

	if w := serveFrom(handler, http.MethodPost, "192.0.2.1:1"); w.Code != http.StatusOK {
		t.Fatalf("first POST status = %d, want 200", w.Code)
	}
	if w := serveFrom(handler, http.MethodDelete, "192.0.2.1:1"); w.Code != http.StatusTooManyRequests {
		t.Errorf("second mutation status = %d, want 429", w.Code)
	}
	if w := serveFrom(handler, http.MethodGet, "192.0.2.1:1"); w.Code != http.StatusOK {
		t.Errorf("GET should only use the general limit, status = %d", w.Code)
	}
	if got := rl.MutationLimiterCount(); got != 1 {
		t.Errorf("MutationLimiterCount() = %d, want 1", got)
	}
}

func TestRateLimitMiddleware_SkipsPreflight(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 0.01, GeneralBurst: 1,
		MutationRate: 0.01, MutationBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		if w := serveFrom(handler, http.MethodOptions, "192.0.2.1:1"); w.Code != http.StatusOK {
			t.Errorf("OPTIONS %d status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_TrustProxy(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 0.01, GeneralBurst: 1,
		MutationRate: 0.01, MutationBurst: 1,
		CleanupInterval: time.Minute,
		TrustProxy:      true,
	})
	handler := rl.Middleware()(okHandler())

	for _, xff := range []string{"203.0.113.1", "203.0.113.2, 10.0.0.1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.RemoteAddr = "10.0.0.1:80"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("X-Forwarded-For %q status = %d, want 200", xff, w.Code)
		}
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 1,
		MutationRate: 1, MutationBurst: 1,
		CleanupInterval: time.Minute,
	})
	handler := rl.Middleware()(okHandler())
	serveFrom(handler, http.MethodPost, "192.0.2.1:1")

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 {
		t.Fatal("recent entries should be kept")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.MutationLimiterCount() != 0 {
		t.Errorf("expired entries remain: general=%d mutation=%d", rl.GeneralLimiterCount(), rl.MutationLimiterCount())
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 || cfg.MutationBurst != 30 {
		t.Errorf("bursts = %d/%d, want 120/30", cfg.GeneralBurst, cfg.MutationBurst)
	}
	if float64(cfg.GeneralRate) != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if float64(cfg.MutationRate) != 0.5 {
		t.Errorf("MutationRate = %v, want 0.5", cfg.MutationRate)
	}
}
