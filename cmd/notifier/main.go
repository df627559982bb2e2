package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"clinic/internal/notifications"
	"clinic/internal/observability/metrics"
	"clinic/pkg/app"
	"clinic/pkg/config"
	"clinic/pkg/kafka"
	kafka_config "clinic/pkg/kafka/config"
	kafka_middleware "clinic/pkg/kafka/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const ServiceName = "notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting notification worker", "topic", cfg.NotifyTopic, "group", cfg.NotifyGroupID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	sender, err := notifications.NewEmailSender(ctx, cfg, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize email sender", "provider", cfg.EmailProvider, "error", err)
	}
	dispatcher := notifications.NewDispatcher(
		notifications.NewComposer(cfg.Clinic),
		sender,
		cfg.NotifyTimeout,
		metrics.NewNotificationMetrics(nil),
		cfg.Log,
	)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.NotifyTopic,
		cfg.NotifyGroupID,
		cfg.NotifyDLQTopic,
		notifications.ConsumerHandler(dispatcher, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.NewMetrics(nil).ConsumerMiddleware())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      opsRouter(cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		cfg.Log.Info("Starting ops server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), consumer.Close())
	})

	if err := g.Wait(); err != nil {
		cfg.Log.Fatal("Notification worker stopped with error", "error", err)
	}
	cfg.Log.Info("Notification worker stopped")
}

// opsRouter serves liveness and Prometheus metrics; the worker has no API.
func opsRouter(cfg *config.Config) http.Handler {
	router := httprouter.New()
	app.NewHealthHandler(nil, cfg.Log).RegisterRoutes(router)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return router
}
