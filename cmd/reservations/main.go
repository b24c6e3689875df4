package main

import (
	"context"
	"os"

	"calendra/internal/reservations/coordinator"
	"calendra/internal/reservations/events"
	"calendra/internal/reservations/handler"
	"calendra/internal/reservations/policy"
	"calendra/internal/reservations/repository"
	"calendra/internal/reservations/service"
	"calendra/internal/reservations/validator"
	"calendra/pkg/app"
	"calendra/pkg/config"
	"calendra/pkg/kafka"
	kafka_config "calendra/pkg/kafka/config"
	kafka_middleware "calendra/pkg/kafka/middleware"
	"calendra/pkg/observability"
)

const ServiceName = "reservations"

type stores struct {
	reservations repository.ReservationStore
	resources    repository.ResourceRepository
	audit        repository.AuditLog
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Reservations service")

	shutdownTracer, err := observability.SetupTracer(context.Background(), ServiceName, cfg.TracingEnabled, os.Stdout)
	if err != nil {
		cfg.Log.Fatal("Failed to set up tracing", "error", err)
	}

	serverApp := app.NewApplication()
	st := initStores(cfg)
	engine := initEngine(cfg, st, serverApp)
	v := validator.NewReservationValidator(cfg.Log)

	sweeper, err := service.NewSweeper(engine, cfg.SweepSchedule, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create hold sweeper", "error", err)
	}

	serverApp.SetApp(cfg,
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Client.Redis, cfg.Log),
		handler.Routes{
			handler.NewReservationHandler(engine, st.audit, v, cfg.Log),
			handler.NewResourceHandler(service.NewResourceService(st.resources, v, cfg.Log), engine, cfg.Log),
		},
	)
	serverApp.AddWorker(sweeper)
	serverApp.OnShutdown(shutdownTracer)
	serverApp.OnShutdown(func(context.Context) error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.Run()
}

func initStores(cfg *config.Config) stores {
	var st stores
	switch cfg.StoreBackend {
	case config.StoreMongo:
		cfg.SetMongo()
		st = stores{
			reservations: repository.NewMongoReservationStore(cfg),
			resources:    repository.NewMongoResourceRepository(cfg),
			audit:        repository.NewMongoAuditLog(cfg),
		}
	default:
		st = stores{
			reservations: repository.NewMemoryReservationStore(),
			resources:    repository.NewMemoryResourceRepository(),
			audit:        repository.NewMemoryAuditLog(),
		}
		cfg.Log.Warn("Using in-memory store, reservations are lost on restart")
	}

	if cfg.SeedResources {
		created, err := repository.Seed(context.Background(), st.resources, repository.DefaultResources())
		if err != nil {
			cfg.Log.Fatal("Failed to seed resources", "error", err)
		}
		cfg.Log.Info("Resources seeded", "created", created)
	}

	cfg.Log.Info("Stores initialized", "backend", cfg.StoreBackend, "database", cfg.MongoDatabaseName)
	return st
}

func initEngine(cfg *config.Config, st stores, serverApp *app.Application) service.ReservationEngine {
	conflictPolicy, err := policy.FromName(cfg.ConflictPolicy, policy.Buffer{
		Before: cfg.BufferBefore,
		After:  cfg.BufferAfter,
	})
	if err != nil {
		cfg.Log.Fatal("Invalid conflict policy", "error", err)
	}

	return service.NewReservationEngine(service.Dependencies{
		Store:       st.reservations,
		Resources:   st.resources,
		Audit:       st.audit,
		Coordinator: initCoordinator(cfg),
		Policy:      conflictPolicy,
		Publisher:   initPublisher(cfg, serverApp),
		Log:         cfg.Log,
	}, service.OptionsFromConfig(cfg))
}

func initCoordinator(cfg *config.Config) coordinator.Coordinator {
	if cfg.Coordinator != config.CoordinatorRedis {
		return coordinator.NewKeyedMutex()
	}
	cfg.SetRedis()
	cfg.Log.Info("Using Redis lock coordinator", "addr", cfg.RedisAddr, "lock_ttl", cfg.RedisLockTTL)
	return coordinator.NewRedisCoordinator(cfg.Client.Redis, cfg.RedisLockTTL, cfg.Log)
}

func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	var sinks events.Fanout
	for _, sink := range cfg.EventsSinks {
		switch sink {
		case config.SinkLog:
			sinks = append(sinks, events.NewLogPublisher(cfg.Log))
		case config.SinkKafka:
			kafkaCfg, err := kafka_config.Load()
			if err != nil {
				cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
			}
			kafkaCfg.LogConfiguration(cfg.Log.Info)
			producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.Log)
			if err != nil {
				cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
			}
			producer.Use(kafka_middleware.MetricsProducerMiddleware())
			producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
			serverApp.OnShutdown(func(context.Context) error { return producer.Close() })
			sinks = append(sinks, events.NewKafkaPublisher(producer))
		case config.SinkNATS:
			cfg.SetNATS()
			sinks = append(sinks, events.NewNATSPublisher(cfg.Client.NATS, cfg.EventsTopic))
		}
	}
	cfg.Log.Info("Event sinks configured", "sinks", cfg.EventsSinks)
	return sinks
}
