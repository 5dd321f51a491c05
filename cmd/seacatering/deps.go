package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/seacatering/subscription-service/internal/app"
	"github.com/seacatering/subscription-service/internal/config"
	"github.com/seacatering/subscription-service/internal/security"
	"github.com/seacatering/subscription-service/internal/store"
	"github.com/seacatering/subscription-service/pkg/rabbitmq"
)

type repository interface {
	app.SubscriptionRepository
	app.TestimonialRepository
}

// openRepository connects to the configured database. SQLite schemas are
// migrated on open; PostgreSQL schemas are applied with the migrate command.
func openRepository(ctx context.Context, cfg config.Config) (repository, func(), error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database connection established", "driver", cfg.DatabaseDriver)
		return store.NewPostgresRepository(pool), pool.Close, nil
	default:
		db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		applied, err := store.MigrateSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("database connection established", "driver", cfg.DatabaseDriver, "path", cfg.SQLitePath, "migrations_applied", len(applied))
		return store.NewSQLiteRepository(db), func() { db.Close() }, nil
	}
}

// openRedis returns nil when REDIS_URL is unset or unreachable; callers then
// fall back to process-local stores.
func openRedis(ctx context.Context, cfg config.Config) redis.UniversalClient {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL; using in-memory security stores", "error", err)
		return nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable; using in-memory security stores", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connection established")
	return client
}

func securityStores(client redis.UniversalClient, prefix string) (security.AttemptStore, security.TokenStore) {
	if client == nil {
		return security.NewMemoryAttemptStore(), security.NewMemoryTokenStore()
	}
	return security.NewRedisAttemptStore(client, prefix), security.NewRedisTokenStore(client, prefix)
}

func openPublisher(cfg config.Config) rabbitmq.Publisher {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set; events will not be published")
		return &rabbitmq.EventProducerFallback{Logger: logger}
	}
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable; events will not be published", "error", err)
		return &rabbitmq.EventProducerFallback{Logger: logger}
	}
	logger.Info("rabbitmq producer ready", "exchange", cfg.EventsExchange)
	return producer
}

func requireConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
