package main

import (
	"context"
	"errors"
	_ "time/tzdata"

	"clinic/internal/appointments/feed"
	appointmentshandler "clinic/internal/appointments/handler"
	appointmentsrepo "clinic/internal/appointments/repository"
	appointmentsservice "clinic/internal/appointments/service"
	bookingvalidator "clinic/internal/appointments/validator"
	discoveryhandler "clinic/internal/discovery/handler"
	discoveryrepo "clinic/internal/discovery/repository"
	discoveryservice "clinic/internal/discovery/service"
	discoveryvalidator "clinic/internal/discovery/validator"
	"clinic/internal/identity"
	identityhandler "clinic/internal/identity/handler"
	"clinic/internal/notifications"
	notificationshandler "clinic/internal/notifications/handler"
	"clinic/internal/observability/metrics"
	"clinic/internal/slots"
	"clinic/pkg/app"
	"clinic/pkg/config"
	"clinic/pkg/contracts"
	"clinic/pkg/kafka"
	kafka_config "clinic/pkg/kafka/config"
	kafka_middleware "clinic/pkg/kafka/middleware"
)

const ServiceName = "clinic"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Clinic booking service")

	if cfg.StoreBackend == config.StoreMongo {
		cfg.SetMongo()
	}
	if cfg.IdempotencyBackend == config.BackendRedis {
		cfg.SetRedis()
	}
	defer cfg.GracefulShutdown()

	ctx := context.Background()
	bookingMetrics := metrics.NewBookingMetrics(nil)
	notificationMetrics := metrics.NewNotificationMetrics(nil)

	notifier := initNotifier(ctx, cfg, notificationMetrics)
	queue, stopQueue := initQueue(cfg, notifier, notificationMetrics)

	reservations, discoveries := initRepositories(cfg)
	calendar := slots.NewCalendar(cfg.Location, cfg.BookingWindowDays, cfg.SlotTimes)

	occupied := feed.NewOccupiedFeed(reservations, calendar, cfg.FeedResyncInterval, bookingMetrics, cfg.Log)
	if err := occupied.Start(ctx); err != nil {
		cfg.Log.Fatal("Failed to start occupied feed", "error", err)
	}

	appointmentService := appointmentsservice.NewAppointmentService(
		reservations,
		occupied,
		calendar,
		bookingvalidator.NewBookingValidator(cfg.Log),
		queue,
		bookingMetrics,
		cfg,
	)
	discoveryService := discoveryservice.NewDiscoveryService(
		discoveries,
		discoveryvalidator.NewDiscoveryValidator(cfg.Log),
		queue,
		bookingMetrics,
		cfg,
	)
	issuer := identity.NewProvider(cfg.IdentitySecret, cfg.IdentityTokenTTL)

	readiness := map[string]app.ReadinessCheck{}
	if cfg.Client.Mongo != nil {
		readiness["mongo"] = app.MongoPing(cfg.Client.Mongo)
	}

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, app.Options{
		Issuer: issuer,
		Handlers: []contracts.Handler{
			appointmentshandler.NewAppointmentHandler(appointmentService, occupied, cfg.Log),
			discoveryhandler.NewDiscoveryHandler(discoveryService, cfg.Log),
			identityhandler.NewIdentityHandler(issuer, cfg.Log),
			notificationshandler.NewSendEmailHandler(notifier, cfg.Log),
		},
		Readiness: readiness,
		Routes: []string{
			appointmentshandler.AppointmentsPath,
			appointmentshandler.SlotsPath,
			appointmentshandler.OccupiedPath,
			appointmentshandler.OccupiedStreamPath,
			discoveryhandler.DiscoveryCallsPath,
			identityhandler.IdentityPath,
			notificationshandler.SendEmailPath,
		},
		PassthroughRoutes: []string{notificationshandler.SendEmailPath},
	})
	serverApp.OnServerShutdown(occupied.Stop)
	serverApp.OnShutdown(stopQueue)
	serverApp.Run()
}

func initRepositories(cfg *config.Config) (appointmentsrepo.ReservationRepository, discoveryrepo.DiscoveryRepository) {
	if cfg.StoreBackend == config.StoreMemory {
		cfg.Log.Warn("Using in-memory store; reservations are lost on restart")
		return appointmentsrepo.NewMemoryReservationRepository(), discoveryrepo.NewMemoryDiscoveryRepository()
	}

	cfg.Log.Info("Repositories initialized", "database", cfg.MongoDatabaseName)
	return appointmentsrepo.NewMongoReservationRepository(cfg), discoveryrepo.NewMongoDiscoveryRepository(cfg)
}

func initNotifier(ctx context.Context, cfg *config.Config, m *metrics.NotificationMetrics) *notifications.Dispatcher {
	sender, err := notifications.NewEmailSender(ctx, cfg, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize email sender", "provider", cfg.EmailProvider, "error", err)
	}
	cfg.Log.Info("Email sender initialized", "provider", cfg.EmailProvider)
	return notifications.NewDispatcher(notifications.NewComposer(cfg.Clinic), sender, cfg.NotifyTimeout, m, cfg.Log)
}

// initQueue returns the booking notification queue and the function that
// drains or closes it on shutdown.
func initQueue(cfg *config.Config, notifier notifications.Notifier, m *metrics.NotificationMetrics) (notifications.Queue, func(context.Context) error) {
	if cfg.NotifyTransport != config.TransportKafka {
		executor := notifications.NewExecutor(notifier, cfg.NotifyWorkers, cfg.NotifyQueueSize, m, cfg.Log)
		executor.Start()
		cfg.Log.Info("Notifications delivered in process", "workers", cfg.NotifyWorkers, "queue_size", cfg.NotifyQueueSize)
		return executor, executor.Stop
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotifyTopic, cfg.NotifyDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.NewMetrics(nil).ProducerMiddleware())

	cfg.Log.Info("Notifications published to Kafka", "topic", cfg.NotifyTopic)
	queue := notifications.NewKafkaQueue(producer, ServiceName, cfg.NotifyTimeout, cfg.NotifyQueueSize, m, cfg.Log)
	return queue, func(ctx context.Context) error {
		return errors.Join(queue.Stop(ctx), producer.Close())
	}
}
