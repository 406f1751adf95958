package di

import (
	"context"
	"fmt"
	"time"

	"campus-found/backend/conversation/feed"
	"campus-found/backend/conversation/repository"
	"campus-found/backend/conversation/service"
	"campus-found/backend/pkg/config"
	"campus-found/backend/pkg/health"
	"campus-found/backend/pkg/jwt"
	"campus-found/backend/pkg/logger"
	"campus-found/backend/pkg/resilience"
	"campus-found/backend/pkg/secrets"
	sharedredis "campus-found/backend/shared/redis"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config     *config.Config
	Logger     *logger.Logger
	Secrets    secrets.Manager
	DB         *gorm.DB
	Redis      *redis.Client
	Store      repository.Store
	Breaker    *resilience.CircuitBreaker
	Broker     *feed.Broker
	Bridge     *feed.RedisBridge
	Messenger  *service.Messenger
	JWTService *jwt.Service
	Health     *health.Checker
}

// New creates a new dependency injection container. With DB_DRIVER=memory
// the store lives in process and nothing is persisted.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	manager, err := secrets.Init(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets: %w", err)
	}
	c.Secrets = manager

	c.Health = health.NewChecker(log, 30*time.Second)

	base, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}

	breakerConfig := resilience.DefaultCircuitBreakerConfig("message-store")
	breakerConfig.FailureThreshold = cfg.Messaging.BreakerFailures
	breakerConfig.RetryTimeout = cfg.Messaging.BreakerCooldown
	breakerConfig.IsFailure = repository.IsStoreFailure
	c.Breaker = resilience.NewCircuitBreaker(breakerConfig, log)

	c.Broker = feed.NewBroker(cfg.Messaging.FeedBuffer, log)
	if cfg.Redis.Enabled {
		c.connectRedis(ctx)
	}

	c.Store = repository.NewNotifying(repository.NewGuarded(base, c.Breaker), c.Broker, log)
	c.Messenger = service.NewMessenger(c.Store, c.Broker, service.Options{
		StrictPairs:  cfg.Messaging.StrictPairs,
		StoreTimeout: cfg.Messaging.StoreTimeout,
	}, log)

	jwtSecret := manager.GetSecretWithDefault(ctx, "jwt.secret", cfg.JWT.Secret)
	c.JWTService = jwt.NewService(jwtSecret, cfg.JWT.Expiry)

	return c, nil
}

func (c *Container) openStore(ctx context.Context) (repository.Store, error) {
	if c.Config.Database.Driver == "memory" {
		c.Logger.Warn("Using in-memory message store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	password := c.Secrets.GetSecretWithDefault(ctx, "db.password", c.Config.Database.Password)
	db, err := config.NewDB(c.Config, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := config.TestConnection(db); err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c.DB = db
	c.Health.RegisterDatabaseCheck(db)
	return repository.NewGormStore(db), nil
}

// connectRedis installs the cross-instance relay. Without redis the feed
// still works within this instance, so a failure here only degrades it.
func (c *Container) connectRedis(ctx context.Context) {
	password := c.Secrets.GetSecretWithDefault(ctx, "redis.password", c.Config.Redis.Password)
	client, err := sharedredis.NewClient(ctx, sharedredis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: password,
		DB:       c.Config.Redis.DB,
	})
	if err != nil {
		c.Logger.Warn("Redis unavailable, live feed limited to this instance", "error", err.Error())
		return
	}

	c.Redis = client
	c.Bridge = feed.NewRedisBridge(client, c.Config.Redis.Channel, c.Broker, c.Logger)
	c.Health.RegisterRedisCheck(client)
}

// Close releases connections held by the container
func (c *Container) Close() {
	c.Health.Stop()

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.LogError(err, "Failed to close redis client")
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if closer, ok := c.Secrets.(interface{ Close() }); ok {
		closer.Close()
	}
}
