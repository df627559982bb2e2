package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinic/internal/identity"
	"clinic/pkg/config"
	"clinic/pkg/contracts"
	"clinic/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type whoami struct{}

func (whoami) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/whoami", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, ok := identity.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(id.Subject))
	})
}

type fixedContract struct{}

func (fixedContract) RegisterRoutes(router *httprouter.Router) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		router.Handle(method, "/api/fixed", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Log:                logger.Discard(),
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
		RequestTimeout:     5 * time.Second,
		IdempotencyTTL:     time.Minute,
		IdempotencyBackend: config.BackendMemory,
		MaxRequestSize:     1024,
		ShutdownTimeout:    time.Second,
	}
}

func newTestApp(checks map[string]ReadinessCheck) http.Handler {
	a := NewApplication()
	a.SetApp(testConfig(), Options{
		Issuer:    identity.NewProvider(strings.Repeat("k", 32), time.Hour),
		Handlers:  []contracts.Handler{whoami{}},
		Readiness: checks,
		Routes:    []string{"/api/v1/whoami"},
		Registry:  prometheus.NewRegistry(),
	})
	return a.Handler()
}

func newPassthroughApp(rateLimit int) http.Handler {
	cfg := testConfig()
	cfg.RateLimitRequests = rateLimit
	a := NewApplication()
	a.SetApp(cfg, Options{
		Issuer:            identity.NewProvider(strings.Repeat("k", 32), time.Hour),
		Handlers:          []contracts.Handler{whoami{}, fixedContract{}},
		Routes:            []string{"/api/fixed"},
		Registry:          prometheus.NewRegistry(),
		PassthroughRoutes: []string{"/api/fixed"},
	})
	return a.Handler()
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newTestApp(nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Empty(t, rec.Header().Get(identity.TokenHeader), "health checks must not provision identities")
}

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("no reachable servers") }

	rec := serve(newTestApp(map[string]ReadinessCheck{"mongo": ok}), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mongo":"ok"`)

	rec = serve(newTestApp(map[string]ReadinessCheck{"mongo": down, "feed": ok}), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mongo":"error"`)
	assert.Contains(t, rec.Body.String(), `"feed":"ok"`)
}

func TestAPIRequestsGetAnIdentity(t *testing.T) {
	rec := serve(newTestApp(nil), http.MethodGet, "/api/v1/whoami")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(identity.TokenHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestApp(nil)
	serve(h, http.MethodGet, "/api/v1/whoami")

	rec := serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_http_requests_total{method="GET",path="/api/v1/whoami",status="200"} 1`)
}

func TestPassthroughRoutes(t *testing.T) {
	h := newPassthroughApp(1)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		req := httptest.NewRequest(method, "/api/fixed", strings.NewReader("name=asha"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}

	for i := 0; i < 3; i++ {
		rec := serve(h, http.MethodPost, "/api/fixed")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Empty(t, rec.Header().Get(identity.TokenHeader))
	}
}

func TestGuardedRoutesStillChecked(t *testing.T) {
	h := newPassthroughApp(1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/whoami", strings.NewReader("name=asha"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/v1/whoami").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodGet, "/api/v1/whoami").Code)
}
