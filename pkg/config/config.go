package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"calendra/pkg/client"
	"calendra/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	StoreBackend      string
	SeedResources     bool

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SubmitGraceWindow time.Duration
	BufferBefore      time.Duration
	BufferAfter       time.Duration
	HoldTTL           time.Duration
	PersistTimeout    time.Duration
	ConflictPolicy    string

	SweepSchedule   string
	SweepMaxRetries int
	SweepBackoff    time.Duration
	SweepBatchSize  int

	Coordinator  string
	RedisAddr    string
	RedisLockTTL time.Duration

	EventsSinks []string
	EventsTopic string
	NATSURL     string

	JWTSecret string
	AdminRole string

	TracingEnabled bool

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the process environment, and exits on invalid settings.
func Load(serviceName string) *Config {
	dotenvErr := godotenv.Load()

	cfg := &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		StoreBackend:      strings.ToLower(getEnvStr(EnvStoreBackend, DefaultStoreBackend)),
		SeedResources:     getEnvBool(EnvSeedResources, DefaultSeedResources),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SubmitGraceWindow: getEnvDuration(EnvSubmitGraceWindow, DefaultSubmitGraceWindow),
		BufferBefore:      getEnvDuration(EnvBufferBefore, DefaultBufferBefore),
		BufferAfter:       getEnvDuration(EnvBufferAfter, DefaultBufferAfter),
		HoldTTL:           getEnvDuration(EnvHoldTTL, DefaultHoldTTL),
		PersistTimeout:    getEnvDuration(EnvPersistTimeout, DefaultPersistTimeout),
		ConflictPolicy:    strings.ToLower(getEnvStr(EnvConflictPolicy, DefaultConflictPolicy)),

		SweepSchedule:   getEnvStr(EnvSweepSchedule, DefaultSweepSchedule),
		SweepMaxRetries: getEnvNum(EnvSweepMaxRetries, DefaultSweepMaxRetries),
		SweepBackoff:    getEnvDuration(EnvSweepBackoff, DefaultSweepBackoff),
		SweepBatchSize:  getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),

		Coordinator:  strings.ToLower(getEnvStr(EnvCoordinator, DefaultCoordinator)),
		RedisAddr:    getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisLockTTL: getEnvDuration(EnvRedisLockTTL, DefaultRedisLockTTL),

		EventsSinks: splitList(getEnvStr(EnvEventsSink, DefaultEventsSink)),
		EventsTopic: getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		NATSURL:     getEnvStr(EnvNATSURL, DefaultNATSURL),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),
		AdminRole: getEnvStr(EnvAdminRole, DefaultAdminRole),

		TracingEnabled: getEnvBool(EnvTracingEnabled, false),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		cfg.Log.Warn("Failed to read .env file", "error", dotenvErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.MongoConnTimeout)
}

func (cfg *Config) SetNATS() {
	cfg.Client.SetNATS(cfg.Log, cfg.NATSURL)
}

func (cfg *Config) HasSink(name string) bool {
	for _, s := range cfg.EventsSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [memory, mongo], got: %s", cfg.StoreBackend))
	}

	switch cfg.Coordinator {
	case CoordinatorLocal:
	case CoordinatorRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when Coordinator is redis")
		}
		if cfg.RedisLockTTL <= 0 {
			errors = append(errors, fmt.Sprintf("RedisLockTTL must be positive, got: %s", cfg.RedisLockTTL))
		} else if cfg.RedisLockTTL <= 2*cfg.PersistTimeout {
			// a locked operation loads then persists, each bounded by PersistTimeout
			errors = append(errors, fmt.Sprintf("RedisLockTTL must exceed twice PersistTimeout (%s), got: %s", cfg.PersistTimeout, cfg.RedisLockTTL))
		}
	default:
		errors = append(errors, fmt.Sprintf("Coordinator must be one of [local, redis], got: %s", cfg.Coordinator))
	}

	for _, sink := range cfg.EventsSinks {
		if sink != SinkLog && sink != SinkKafka && sink != SinkNATS {
			errors = append(errors, fmt.Sprintf("EventsSink entries must be one of [log, kafka, nats], got: %s", sink))
		}
	}
	if cfg.HasSink(SinkNATS) && cfg.NATSURL == "" {
		errors = append(errors, "NATSURL cannot be empty when the nats sink is enabled")
	}
	if cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
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

	if cfg.SubmitGraceWindow < 0 {
		errors = append(errors, fmt.Sprintf("SubmitGraceWindow cannot be negative, got: %s", cfg.SubmitGraceWindow))
	}
	if cfg.BufferBefore < 0 || cfg.BufferAfter < 0 {
		errors = append(errors, fmt.Sprintf("Buffers cannot be negative, got: before=%s after=%s", cfg.BufferBefore, cfg.BufferAfter))
	}
	if cfg.HoldTTL <= 0 {
		errors = append(errors, fmt.Sprintf("HoldTTL must be positive, got: %s", cfg.HoldTTL))
	}
	if cfg.PersistTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PersistTimeout must be positive, got: %s", cfg.PersistTimeout))
	}

	if cfg.ConflictPolicy != "capacity" && cfg.ConflictPolicy != "exclusive" {
		errors = append(errors, fmt.Sprintf("ConflictPolicy must be one of [capacity, exclusive], got: %s", cfg.ConflictPolicy))
	}

	if cfg.SweepSchedule == "" {
		errors = append(errors, "SweepSchedule cannot be empty")
	}
	if cfg.SweepMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("SweepMaxRetries cannot be negative, got: %d", cfg.SweepMaxRetries))
	}
	if cfg.SweepBackoff <= 0 {
		errors = append(errors, fmt.Sprintf("SweepBackoff must be positive, got: %s", cfg.SweepBackoff))
	}
	if cfg.SweepBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("SweepBatchSize must be positive, got: %d", cfg.SweepBatchSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_backend", cfg.StoreBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"seed_resources", cfg.SeedResources,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"submit_grace_window", cfg.SubmitGraceWindow,
		"buffer_before", cfg.BufferBefore,
		"buffer_after", cfg.BufferAfter,
		"hold_ttl", cfg.HoldTTL,
		"conflict_policy", cfg.ConflictPolicy,
		"sweep_schedule", cfg.SweepSchedule,
		"sweep_max_retries", cfg.SweepMaxRetries,
		"coordinator", cfg.Coordinator,
		"redis_addr", cfg.RedisAddr,
		"events_sinks", cfg.EventsSinks,
		"events_topic", cfg.EventsTopic,
		"jwt_enabled", cfg.JWTSecret != "",
		"tracing_enabled", cfg.TracingEnabled,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
