package main

import (
	"context"
	"time"

	mongoMigration "calendra/internal/migrations/mongo"
	"calendra/internal/reservations/repository"
	"calendra/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName)
	defer cfg.GracefulShutdown()

	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	if cfg.SeedResources {
		created, err := repository.Seed(ctx, repository.NewMongoResourceRepository(cfg), repository.DefaultResources())
		if err != nil {
			cfg.Log.Fatal("Seeding resources failed", "error", err)
		}
		cfg.Log.Info("Resources seeded", "created", created)
	}

	cfg.Log.Info("Migration completed")
}
