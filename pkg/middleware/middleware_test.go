package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clinic/pkg/logger"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	})
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	stores := map[string]func(t *testing.T) IdempotencyStore{
		"memory": func(t *testing.T) IdempotencyStore {
			s := NewInMemoryIdempotencyStore(time.Hour)
			t.Cleanup(s.Stop)
			return s
		},
		"redis": func(t *testing.T) IdempotencyStore {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisIdempotencyStore(client, time.Hour)
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			var calls int32
			h := Idempotency(newStore(t), "", logger.Discard())(countingHandler(&calls, http.StatusCreated))

			var bodies []string
			for i := 0; i < 2; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`))
				req.Header.Set(DefaultIdempotencyHeader, "abc")
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code != http.StatusCreated {
					t.Fatalf("attempt %d: status = %d", i, rec.Code)
				}
				bodies = append(bodies, rec.Body.String())
			}

			if calls != 1 {
				t.Errorf("handler called %d times, want 1", calls)
			}
			if bodies[0] != bodies[1] {
				t.Errorf("replayed body differs: %q vs %q", bodies[0], bodies[1])
			}
		})
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	var calls int32
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()
	h := Idempotency(store, "", logger.Discard())(countingHandler(&calls, http.StatusConflict))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
		req.Header.Set(DefaultIdempotencyHeader, "abc")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestRedisIdempotencyStore_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	if err := store.Set(ctx, "k", &CachedResponse{StatusCode: 200, Body: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := store.Get(ctx, "k"); !found {
		t.Fatal("expected cached response")
	}

	mr.FastForward(2 * time.Minute)

	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("expected entry to expire")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(2, time.Hour, KeyByClientIP, logger.Discard())
	defer limiter.Stop()

	var calls int32
	h := RateLimit(limiter)(countingHandler(&calls, http.StatusOK))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client should have its own bucket, got %d", rec.Code)
	}
}

func TestKeyByClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	if got := KeyByClientIP(req); got != "ip:203.0.113.9" {
		t.Errorf("got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := KeyByClientIP(req); got != "ip:198.51.100.7" {
		t.Errorf("got %q", got)
	}
}

func TestContentTypeValidation(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"form post", http.MethodPost, `a=b`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"empty post", http.MethodPost, ``, "", http.StatusOK},
		{"get", http.MethodGet, ``, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			h := ContentTypeValidation(logger.Discard())(countingHandler(&calls, http.StatusOK))
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	var calls int32
	h := MaxRequestSize(4)(countingHandler(&calls, http.StatusOK))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if calls != 0 {
		t.Error("handler should not run")
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != `{"error":"Internal server error"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRequestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	rec := httptest.NewRecorder()
	RequestTimeout(10*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRequestTimeout_SkipsEventStreams(t *testing.T) {
	var deadlineSet bool
	h := RequestTimeout(time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadlineSet = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/event-stream")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if deadlineSet {
		t.Error("event stream requests should not get a deadline")
	}
}

func TestRequestLogging_SetsRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Errorf("request id in context = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("request id header = %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, []string{"/api/v1/appointments"})

	var calls int32
	h := Metrics(m)(countingHandler(&calls, http.StatusCreated))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/appointments", "201")); got != 1 {
		t.Errorf("known route counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "other", "201")); got != 1 {
		t.Errorf("unknown route counter = %v, want 1", got)
	}
}
