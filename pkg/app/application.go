package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"clinic/internal/identity"
	"clinic/pkg/config"
	"clinic/pkg/contracts"
	"clinic/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options describes what the API server exposes.
type Options struct {
	Issuer    identity.Issuer
	Handlers  []contracts.Handler
	Readiness map[string]ReadinessCheck
	// Routes are reported by name in HTTP metrics; anything else is "other".
	Routes []string
	// Registry defaults to the Prometheus default registry.
	Registry *prometheus.Registry
	// PassthroughRoutes keep a fixed response contract. They skip the
	// identity, idempotency, rate limit and content type checks.
	PassthroughRoutes []string
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	metricsHandler   http.Handler
	appHTTPHandler   http.Handler
	passthrough      http.Handler
	passthroughPaths []string
	onShutdown       []func(context.Context) error
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, opts Options) {
	a.cfg = cfg
	a.setHealthHandler(cfg, opts.Readiness)
	a.setMetricsHandler(opts.Registry)
	a.setAppHandler(cfg, opts)
	a.setAppServer()
}

// OnShutdown registers fn to run after the server stops accepting requests,
// in registration order.
func (a *Application) OnShutdown(fn func(context.Context) error) {
	a.onShutdown = append(a.onShutdown, fn)
}

// OnServerShutdown runs fn as soon as shutdown begins, before in-flight
// requests drain. Long-lived streams use it to end their responses. Call
// after SetApp.
func (a *Application) OnServerShutdown(fn func()) {
	a.server.RegisterOnShutdown(fn)
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setHealthHandler(cfg *config.Config, checks map[string]ReadinessCheck) {
	healthRouter := httprouter.New()
	NewHealthHandler(checks, cfg.Log).RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setMetricsHandler(registry *prometheus.Registry) {
	if registry == nil {
		a.metricsHandler = promhttp.Handler()
		return
	}
	a.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (a *Application) setAppHandler(cfg *config.Config, opts Options) {
	appRouter := httprouter.New()
	for _, h := range opts.Handlers {
		h.RegisterRoutes(appRouter)
	}

	if cfg.IdempotencyBackend == config.BackendRedis && cfg.Client != nil && cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(cfg.Client.Redis, cfg.IdempotencyTTL)
		cfg.Log.Info("Idempotency keys stored in Redis", "addr", cfg.RedisAddr)
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		middleware.KeyByClientIP,
		cfg.Log,
	)

	var registerer prometheus.Registerer
	if opts.Registry != nil {
		registerer = opts.Registry
	}
	httpMetrics := middleware.NewHTTPMetrics(registerer, opts.Routes)

	base := func(h http.Handler) http.Handler {
		h = middleware.RequestTimeout(cfg.RequestTimeout)(h)
		h = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(h)
		h = middleware.Metrics(httpMetrics)(h)
		h = middleware.RequestLogging(cfg.Log)(h)
		return middleware.Recovery(cfg.Log)(h)
	}

	var appHTTPHandler http.Handler = appRouter
	appHTTPHandler = identity.Middleware(opts.Issuer, cfg.Log, identity.SkipNonAPI)(appHTTPHandler)
	appHTTPHandler = middleware.Idempotency(a.idempotencyStore, middleware.DefaultIdempotencyHeader, cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.RateLimit(a.rateLimiter)(appHTTPHandler)
	appHTTPHandler = middleware.ContentTypeValidation(cfg.Log)(appHTTPHandler)
	a.appHTTPHandler = base(appHTTPHandler)

	a.passthrough = base(appRouter)
	a.passthroughPaths = opts.PassthroughRoutes
	cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/metrics", a.metricsHandler)
	mux.Handle("/", a.appHTTPHandler)
	for _, path := range a.passthroughPaths {
		mux.Handle(path, a.passthrough)
	}

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	for _, fn := range a.onShutdown {
		if err := fn(ctx); err != nil {
			a.cfg.Log.Error("Background worker shutdown failed", "error", err)
		}
	}
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.Log.Info("Server stopped gracefully")
}
