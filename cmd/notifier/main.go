package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"calendra/internal/reservations/notifier"
	"calendra/pkg/config"
	"calendra/pkg/kafka"
	kafka_config "calendra/pkg/kafka/config"
	kafka_middleware "calendra/pkg/kafka/middleware"
)

const ServiceName = "notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Notifier service")
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	var versions notifier.VersionTracker
	if _, ok := os.LookupEnv(config.EnvRedisAddr); ok {
		cfg.SetRedis()
		versions = notifier.NewRedisVersionTracker(cfg.Client.Redis, cfg.IdempotencyTTL)
	} else {
		cfg.Log.Warn("REDIS_ADDR not set, tracking notified versions in memory")
		versions = notifier.NewMemoryVersionTracker()
	}

	h := notifier.NewHandler(notifier.NewLogSender(cfg.Log), versions, cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.EventsTopic, h.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	defer func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming reservation events", "topic", cfg.EventsTopic, "group", kafkaCfg.ConsumerGroup)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}
