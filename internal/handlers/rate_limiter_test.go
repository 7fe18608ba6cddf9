package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyedLimiterRefills(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newKeyedLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("1.2.3.4") || !limiter.Allow("1.2.3.4") {
		t.Fatalf("expected first two requests to pass")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("expected third request to be throttled")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatalf("expected other clients to be unaffected")
	}

	now = now.Add(31 * time.Second)
	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("expected one token back after half a window")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("expected bucket empty again")
	}
}

func TestKeyedLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newKeyedLimiter(5, time.Minute, func() time.Time { return now })
	limiter.Allow("a")
	limiter.Allow("b")

	now = now.Add(2 * time.Minute)
	limiter.Allow("c")
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected idle buckets swept, got %d", len(limiter.buckets))
	}
}

func TestRateLimitPerMinuteRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	handler := RateLimitPerMinute(4, func() time.Time { return now })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/", nil))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "15" {
		t.Fatalf("expected Retry-After 15, got %q", got)
	}
}

func TestRateLimitPerMinuteDisabled(t *testing.T) {
	if newKeyedLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	handler := RateLimitPerMinute(0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected pass-through, got %d", rr.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("unexpected ip %q", got)
	}
	req.RemoteAddr = "203.0.113.9"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("unexpected ip %q", got)
	}
}
