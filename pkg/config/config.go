package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"clinic/pkg/client"
	"clinic/pkg/logger"

	"github.com/joho/godotenv"
)

// ClinicProfile holds the fixed details that appear in notification emails.
type ClinicProfile struct {
	DoctorName      string
	ClinicName      string
	ClinicEmail     string
	MeetLink        string
	UPIID           string
	ConsultationFee string
	PatientSender   string
	ClinicSender    string
}

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	StoreBackend      string

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout     time.Duration
	IdempotencyTTL     time.Duration
	IdempotencyBackend string
	MaxRequestSize     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ClinicTimezone     string
	Location           *time.Location
	BookingWindowDays  int
	SlotTimes          []string
	FeedResyncInterval time.Duration

	IdentitySecret   string
	IdentityTokenTTL time.Duration

	NotifyTransport string
	NotifyWorkers   int
	NotifyQueueSize int
	NotifyTimeout   time.Duration
	NotifyTopic     string
	NotifyDLQTopic  string
	NotifyGroupID   string
	EmailProvider   string
	SendGridAPIKey  string
	AWSRegion       string

	Clinic ClinicProfile

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment (and an optional .env file), validates the
// result and exits the process when validation fails.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// LoadJob is Load for one-shot jobs that never serve bookings or send
// notifications.
func LoadJob(jobName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:   getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:  logger.JSON,
		Service: jobName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.ValidateJob(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	return cfg
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv() *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		StoreBackend:      getEnvStr(EnvStoreBackend, DefaultStoreBackend),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout:     getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL:     getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		IdempotencyBackend: getEnvStr(EnvIdempotencyBackend, DefaultIdempotencyBackend),
		MaxRequestSize:     getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ClinicTimezone:     getEnvStr(EnvClinicTimezone, DefaultClinicTimezone),
		BookingWindowDays:  getEnvNum(EnvBookingWindowDays, DefaultBookingWindowDays),
		SlotTimes:          getEnvList(EnvSlotTimes, DefaultSlotTimes),
		FeedResyncInterval: getEnvDuration(EnvFeedResyncInterval, DefaultFeedResyncInterval),

		IdentitySecret:   getEnvStr(EnvIdentitySecret, ""),
		IdentityTokenTTL: getEnvDuration(EnvIdentityTokenTTL, DefaultIdentityTokenTTL),

		NotifyTransport: getEnvStr(EnvNotifyTransport, DefaultNotifyTransport),
		NotifyWorkers:   getEnvNum(EnvNotifyWorkers, DefaultNotifyWorkers),
		NotifyQueueSize: getEnvNum(EnvNotifyQueueSize, DefaultNotifyQueueSize),
		NotifyTimeout:   getEnvDuration(EnvNotifyTimeout, DefaultNotifyTimeout),
		NotifyTopic:     getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		NotifyDLQTopic:  getEnvStr(EnvNotifyDLQTopic, DefaultNotifyDLQTopic),
		NotifyGroupID:   getEnvStr(EnvNotifyGroupID, DefaultNotifyGroupID),
		EmailProvider:   getEnvStr(EnvEmailProvider, DefaultEmailProvider),
		SendGridAPIKey:  getEnvStr(EnvSendGridAPIKey, ""),
		AWSRegion:       getEnvStr(EnvAWSRegion, DefaultAWSRegion),

		Clinic: ClinicProfile{
			DoctorName:      getEnvStr(EnvDoctorName, DefaultDoctorName),
			ClinicName:      getEnvStr(EnvClinicName, DefaultClinicName),
			ClinicEmail:     getEnvStr(EnvClinicEmail, DefaultClinicEmail),
			MeetLink:        getEnvStr(EnvMeetLink, DefaultMeetLink),
			UPIID:           getEnvStr(EnvUPIID, DefaultUPIID),
			ConsultationFee: getEnvStr(EnvConsultationFee, DefaultConsultationFee),
			PatientSender:   getEnvStr(EnvPatientSender, DefaultPatientSender),
			ClinicSender:    getEnvStr(EnvClinicSender, DefaultClinicSender),
		},
	}

	if loc, err := time.LoadLocation(cfg.ClinicTimezone); err == nil {
		cfg.Location = loc
	}
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, DefaultRedisConnTimeout)
}

var (
	timeRegex     = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	mongoURIRegex = regexp.MustCompile(`^mongodb(\+srv)?://`)
)

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	errors = append(errors, cfg.storeErrors()...)

	switch cfg.IdempotencyBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when IdempotencyBackend is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("IdempotencyBackend must be %q or %q, got: %s", BackendMemory, BackendRedis, cfg.IdempotencyBackend))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.BookingWindowDays <= 0 {
		errors = append(errors, fmt.Sprintf("BookingWindowDays must be positive, got: %d", cfg.BookingWindowDays))
	}
	if len(cfg.SlotTimes) == 0 {
		errors = append(errors, "SlotTimes cannot be empty")
	}
	seen := make(map[string]bool, len(cfg.SlotTimes))
	for _, t := range cfg.SlotTimes {
		if !timeRegex.MatchString(t) {
			errors = append(errors, fmt.Sprintf("SlotTimes entries must be in HH:MM format (00:00-23:59), got: %s", t))
		}
		if seen[t] {
			errors = append(errors, fmt.Sprintf("SlotTimes contains duplicate entry: %s", t))
		}
		seen[t] = true
	}
	if cfg.FeedResyncInterval <= 0 {
		errors = append(errors, fmt.Sprintf("FeedResyncInterval must be positive, got: %s", cfg.FeedResyncInterval))
	}

	if len(cfg.IdentitySecret) < 32 {
		errors = append(errors, "IdentitySecret must be at least 32 characters")
	}
	if cfg.IdentityTokenTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdentityTokenTTL must be positive, got: %s", cfg.IdentityTokenTTL))
	}

	switch cfg.NotifyTransport {
	case TransportInline:
		if cfg.NotifyWorkers <= 0 {
			errors = append(errors, fmt.Sprintf("NotifyWorkers must be positive, got: %d", cfg.NotifyWorkers))
		}
		if cfg.NotifyQueueSize <= 0 {
			errors = append(errors, fmt.Sprintf("NotifyQueueSize must be positive, got: %d", cfg.NotifyQueueSize))
		}
	case TransportKafka:
		if cfg.NotifyTopic == "" {
			errors = append(errors, "NotifyTopic cannot be empty when NotifyTransport is kafka")
		}
	default:
		errors = append(errors, fmt.Sprintf("NotifyTransport must be %q or %q, got: %s", TransportInline, TransportKafka, cfg.NotifyTransport))
	}
	if cfg.NotifyTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyTimeout must be positive, got: %s", cfg.NotifyTimeout))
	}

	switch cfg.EmailProvider {
	case ProviderStub:
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			errors = append(errors, "SendGridAPIKey cannot be empty when EmailProvider is sendgrid")
		}
	case ProviderSES:
		if cfg.AWSRegion == "" {
			errors = append(errors, "AWSRegion cannot be empty when EmailProvider is ses")
		}
	default:
		errors = append(errors, fmt.Sprintf("EmailProvider must be one of %q, %q, %q, got: %s", ProviderStub, ProviderSendGrid, ProviderSES, cfg.EmailProvider))
	}

	if cfg.Clinic.ClinicEmail == "" {
		errors = append(errors, "ClinicEmail cannot be empty")
	}
	if cfg.Clinic.PatientSender == "" || cfg.Clinic.ClinicSender == "" {
		errors = append(errors, "PatientSender and ClinicSender cannot be empty")
	}

	return joinErrors(errors)
}

// storeErrors checks the settings every process that touches the store needs.
func (cfg *Config) storeErrors() []string {
	var errors []string

	switch cfg.StoreBackend {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !mongoURIRegex.MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be %q or %q, got: %s", StoreMongo, StoreMemory, cfg.StoreBackend))
	}

	if cfg.Location == nil {
		errors = append(errors, fmt.Sprintf("ClinicTimezone must be a valid IANA zone, got: %s", cfg.ClinicTimezone))
	}
	return errors
}

// ValidateJob validates only what one-shot jobs (migrations, clinicctl)
// rely on: the store and the clinic timezone.
func (cfg *Config) ValidateJob() error {
	return joinErrors(cfg.storeErrors())
}

func joinErrors(errors []string) error {
	if len(errors) == 0 {
		return nil
	}
	errMsg := "Configuration validation failed:\n"
	for i, err := range errors {
		errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
	}
	return fmt.Errorf("%s", errMsg)
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"store_backend", cfg.StoreBackend,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"idempotency_backend", cfg.IdempotencyBackend,
		"max_request_size", cfg.MaxRequestSize,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"clinic_timezone", cfg.ClinicTimezone,
		"booking_window_days", cfg.BookingWindowDays,
		"slot_times", strings.Join(cfg.SlotTimes, ","),
		"feed_resync_interval", cfg.FeedResyncInterval,
		"identity_secret_set", cfg.IdentitySecret != "",
		"identity_token_ttl", cfg.IdentityTokenTTL,
		"notify_transport", cfg.NotifyTransport,
		"notify_workers", cfg.NotifyWorkers,
		"notify_queue_size", cfg.NotifyQueueSize,
		"notify_timeout", cfg.NotifyTimeout,
		"notify_topic", cfg.NotifyTopic,
		"email_provider", cfg.EmailProvider,
		"sendgrid_api_key_set", cfg.SendGridAPIKey != "",
		"aws_region", cfg.AWSRegion,
		"clinic_email", cfg.Clinic.ClinicEmail,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}
