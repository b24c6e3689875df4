package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "calendra"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultStoreBackend      = StoreMemory
	DefaultSeedResources     = true

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSubmitGraceWindow = 1 * time.Minute
	DefaultBufferBefore      = 0
	DefaultBufferAfter       = 0
	DefaultHoldTTL           = 10 * time.Minute
	DefaultPersistTimeout    = 5 * time.Second
	DefaultConflictPolicy    = "capacity"

	DefaultSweepSchedule   = "@every 30s"
	DefaultSweepMaxRetries = 3
	DefaultSweepBackoff    = 100 * time.Millisecond
	DefaultSweepBatchSize  = 500

	DefaultCoordinator  = CoordinatorLocal
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisLockTTL = 15 * time.Second

	DefaultEventsSink  = SinkLog
	DefaultEventsTopic = "reservations.events"
	DefaultNATSURL     = "nats://localhost:4222"

	DefaultAdminRole = "admin"

	DefaultPaginationLimit = 100
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	CoordinatorLocal = "local"
	CoordinatorRedis = "redis"

	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkNATS  = "nats"
)
