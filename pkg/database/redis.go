package database

import (
	"context"
	"fmt"
	"time"

	"SportMatchService/config"
	"SportMatchService/pkg/resilience"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient создает клиент Redis и дожидается ответа на PING
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, rc config.ResilienceConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  rc.Redis.CommandTimeout,
		WriteTimeout: rc.Redis.CommandTimeout,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	err := resilience.WithRetry(ctx, logger, "redis_connect", startupRetryOptions(rc), func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return client, nil
}
