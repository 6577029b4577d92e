package database

import (
	"context"
	"errors"

	"SportMatchService/config"
	"SportMatchService/pkg/apperrors"
	"SportMatchService/pkg/resilience"
	"SportMatchService/pkg/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrRedisDisabled возвращается, когда сервис запущен без Redis
var ErrRedisDisabled = errors.New("redis is not configured")

// HealthChecker проверяет хранилища и оборачивает обращения к ним в circuit breaker и таймауты
type HealthChecker struct {
	db           *gorm.DB
	redisClient  *redis.Client
	logger       *zap.Logger
	cfg          config.ResilienceConfig
	pgCircuit    *resilience.CircuitBreaker
	redisCircuit *resilience.CircuitBreaker
}

// NewDatabaseHealthChecker создает HealthChecker. redisClient может быть nil.
func NewDatabaseHealthChecker(db *gorm.DB, redisClient *redis.Client, cfg config.ResilienceConfig, logger *zap.Logger) *HealthChecker {
	newBreaker := func(name string) *resilience.CircuitBreaker {
		return resilience.NewCircuitBreaker(name,
			cfg.CircuitBreaker.FailureThreshold,
			cfg.CircuitBreaker.ResetTimeout,
			logger,
			resilience.WithIgnoredErrors(apperrors.IgnoredErrors...),
			resilience.WithStateChangeHook(func(name string, state resilience.CircuitState) {
				server.RecordCircuitBreakerStateChange(name, int(state))
			}))
	}

	return &HealthChecker{
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		cfg:          cfg,
		pgCircuit:    newBreaker("postgres"),
		redisCircuit: newBreaker("redis"),
	}
}

// IsDatabaseHealthy проверяет здоровье PostgreSQL
func (c *HealthChecker) IsDatabaseHealthy(ctx context.Context) bool {
	err := c.WithDatabaseResilience(ctx, "postgres_health_check", func(ctx context.Context) error {
		sqlDB, err := c.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	return err == nil
}

// IsRedisHealthy проверяет здоровье Redis
func (c *HealthChecker) IsRedisHealthy(ctx context.Context) bool {
	err := c.WithRedisResilience(ctx, "redis_health_check", func(ctx context.Context) error {
		return c.redisClient.Ping(ctx).Err()
	})
	return err == nil
}

// WithDatabaseResilience выполняет операцию с PostgreSQL через circuit breaker с таймаутом команды
func (c *HealthChecker) WithDatabaseResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return c.pgCircuit.Execute(ctx, operation, func(ctx context.Context) error {
		if timeout := c.cfg.Database.CommandTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return fn(ctx)
	})
}

// WithRedisResilience выполняет операцию с Redis через circuit breaker с таймаутом команды
func (c *HealthChecker) WithRedisResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if c.redisClient == nil {
		return ErrRedisDisabled
	}

	err := c.redisCircuit.Execute(ctx, operation, func(ctx context.Context) error {
		if timeout := c.cfg.Redis.CommandTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return fn(ctx)
	})

	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Key not found in Redis", zap.String("operation", operation))
	}
	return err
}

// Close закрывает подключения к хранилищам
func (c *HealthChecker) Close() error {
	var errs []error
	if c.redisClient != nil {
		errs = append(errs, c.redisClient.Close())
	}
	if sqlDB, err := c.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
