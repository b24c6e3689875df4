package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvStoreBackend      = "STORE_BACKEND"
	EnvSeedResources     = "SEED_RESOURCES"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSubmitGraceWindow = "SUBMIT_GRACE_WINDOW"
	EnvBufferBefore      = "BUFFER_BEFORE"
	EnvBufferAfter       = "BUFFER_AFTER"
	EnvHoldTTL           = "HOLD_TTL"
	EnvPersistTimeout    = "PERSIST_TIMEOUT"
	EnvConflictPolicy    = "CONFLICT_POLICY"

	EnvSweepSchedule   = "SWEEP_SCHEDULE"
	EnvSweepMaxRetries = "SWEEP_MAX_RETRIES"
	EnvSweepBackoff    = "SWEEP_BACKOFF"
	EnvSweepBatchSize  = "SWEEP_BATCH_SIZE"

	EnvCoordinator  = "COORDINATOR"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvRedisLockTTL = "REDIS_LOCK_TTL"

	EnvEventsSink  = "EVENTS_SINK"
	EnvEventsTopic = "EVENTS_TOPIC"
	EnvNATSURL     = "NATS_URL"

	EnvJWTSecret = "JWT_SECRET"
	EnvAdminRole = "ADMIN_ROLE"

	EnvTracingEnabled = "TRACING_ENABLED"
)
