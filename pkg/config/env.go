package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStoreBackend      = "STORE_BACKEND"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout     = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL     = "IDEMPOTENCY_TTL"
	EnvIdempotencyBackend = "IDEMPOTENCY_BACKEND"
	EnvMaxRequestSize     = "MAX_REQUEST_SIZE"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvClinicTimezone     = "CLINIC_TIMEZONE"
	EnvBookingWindowDays  = "BOOKING_WINDOW_DAYS"
	EnvSlotTimes          = "SLOT_TIMES"
	EnvFeedResyncInterval = "FEED_RESYNC_INTERVAL"

	EnvIdentitySecret   = "IDENTITY_SECRET"
	EnvIdentityTokenTTL = "IDENTITY_TOKEN_TTL"

	EnvNotifyTransport = "NOTIFY_TRANSPORT"
	EnvNotifyWorkers   = "NOTIFY_WORKERS"
	EnvNotifyQueueSize = "NOTIFY_QUEUE_SIZE"
	EnvNotifyTimeout   = "NOTIFY_TIMEOUT"
	EnvNotifyTopic     = "NOTIFY_TOPIC"
	EnvNotifyDLQTopic  = "NOTIFY_DLQ_TOPIC"
	EnvNotifyGroupID   = "NOTIFY_GROUP_ID"
	EnvEmailProvider   = "EMAIL_PROVIDER"
	EnvSendGridAPIKey  = "SENDGRID_API_KEY"
	EnvAWSRegion       = "AWS_REGION"

	EnvDoctorName      = "CLINIC_DOCTOR_NAME"
	EnvClinicName      = "CLINIC_NAME"
	EnvClinicEmail     = "CLINIC_EMAIL"
	EnvMeetLink        = "CLINIC_MEET_LINK"
	EnvUPIID           = "CLINIC_UPI_ID"
	EnvConsultationFee = "CLINIC_CONSULTATION_FEE"
	EnvPatientSender   = "CLINIC_PATIENT_SENDER"
	EnvClinicSender    = "CLINIC_NOTIFY_SENDER"
)
