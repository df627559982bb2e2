package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "clinic"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStoreBackend      = StoreMongo

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout     = 30 * time.Second
	DefaultIdempotencyTTL     = 24 * time.Hour
	DefaultIdempotencyBackend = BackendMemory
	DefaultMaxRequestSize     = 64 * 1024 // 64KB

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDB          = 0
	DefaultRedisConnTimeout = 5 * time.Second

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultClinicTimezone     = "Asia/Kolkata"
	DefaultBookingWindowDays  = 15
	DefaultSlotTimes          = "18:00,19:00,20:00,21:00"
	DefaultFeedResyncInterval = 30 * time.Second

	DefaultIdentityTokenTTL = 30 * 24 * time.Hour

	DefaultNotifyTransport = TransportInline
	DefaultNotifyWorkers   = 4
	DefaultNotifyQueueSize = 256
	DefaultNotifyTimeout   = 5 * time.Second
	DefaultNotifyTopic     = "clinic.notifications"
	DefaultNotifyDLQTopic  = "clinic.notifications.dlq"
	DefaultNotifyGroupID   = "clinic-notifier"
	DefaultEmailProvider   = ProviderStub
	DefaultAWSRegion       = "ap-south-1"

	DefaultDoctorName      = "Dr. Pratikshya K. Padhy"
	DefaultClinicName      = "Dr. Pratikshya's Clinic"
	DefaultClinicEmail     = "clinic@example.com"
	DefaultMeetLink        = "https://meet.google.com/your-static-link"
	DefaultUPIID           = "doctor.pratikshya@upi"
	DefaultConsultationFee = "₹500"
	DefaultPatientSender   = "noreply@example.com"
	DefaultClinicSender    = "notify@example.com"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	TransportInline = "inline"
	TransportKafka  = "kafka"

	ProviderStub     = "stub"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
)
