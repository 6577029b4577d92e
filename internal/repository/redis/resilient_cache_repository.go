package redis

import (
	"context"
	"errors"
	"time"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"
	"SportMatchService/pkg/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Executor выполняет операцию с Redis через circuit breaker
type Executor interface {
	WithRedisResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error
}

// ResilientCacheRepository добавляет circuit breaker и метрики к кэш-репозиторию.
// Кэш вспомогательный: ошибки логируются и возвращаются, но не должны ломать запрос.
type ResilientCacheRepository struct {
	repo     *CacheRepository
	executor Executor
	logger   *zap.Logger
}

// NewResilientCacheRepository создает новый экземпляр отказоустойчивого кэш-репозитория
func NewResilientCacheRepository(repo *CacheRepository, executor Executor, logger *zap.Logger) *ResilientCacheRepository {
	return &ResilientCacheRepository{
		repo:     repo,
		executor: executor,
		logger:   logger,
	}
}

// SetUser кэширует пользователя
func (r *ResilientCacheRepository) SetUser(ctx context.Context, user *models.User) error {
	err := r.executor.WithRedisResilience(ctx, "set_user", func(ctx context.Context) error {
		return r.repo.SetUser(ctx, user)
	})
	r.record("set_user", err)
	if err != nil {
		r.logger.Warn("Failed to cache user, continuing without caching",
			zap.String("telegram_id", user.TelegramID),
			zap.Error(err))
	}
	return err
}

// SetUserIfAbsent кэширует пользователя после промаха, не перезаписывая существующий ключ
func (r *ResilientCacheRepository) SetUserIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	var stored bool
	err := r.executor.WithRedisResilience(ctx, "set_user_if_absent", func(ctx context.Context) error {
		var err error
		stored, err = r.repo.SetUserIfAbsent(ctx, user)
		return err
	})
	r.record("set_user_if_absent", err)
	if err != nil {
		r.logger.Warn("Failed to cache user, continuing without caching",
			zap.String("telegram_id", user.TelegramID),
			zap.Error(err))
	}
	return stored, err
}

// GetUser получает пользователя из кэша. Промах возвращает apperrors.ErrCacheMiss.
func (r *ResilientCacheRepository) GetUser(ctx context.Context, telegramID string) (*models.User, error) {
	var user *models.User
	err := r.executor.WithRedisResilience(ctx, "get_user", func(ctx context.Context) error {
		var err error
		user, err = r.repo.GetUser(ctx, telegramID)
		return err
	})

	switch {
	case err == nil:
		server.RecordCacheOperation("get_user", "hit")
	case errors.Is(err, redis.Nil):
		server.RecordCacheOperation("get_user", "miss")
		return nil, apperrors.ErrCacheMiss
	default:
		server.RecordCacheOperation("get_user", "error")
		r.logger.Warn("Failed to read user from cache",
			zap.String("telegram_id", telegramID),
			zap.Error(err))
	}
	return user, err
}

// DeleteUser инвалидирует профили в кэше
func (r *ResilientCacheRepository) DeleteUser(ctx context.Context, telegramIDs ...string) error {
	err := r.executor.WithRedisResilience(ctx, "delete_user", func(ctx context.Context) error {
		return r.repo.DeleteUser(ctx, telegramIDs...)
	})
	r.record("delete_user", err)
	if err != nil {
		r.logger.Warn("Failed to invalidate cached users",
			zap.Strings("telegram_ids", telegramIDs),
			zap.Error(err))
	}
	return err
}

// AcquireMatchLock берет блокировки пользователей на время фиксации пары
func (r *ResilientCacheRepository) AcquireMatchLock(ctx context.Context, telegramIDs []string, ttl time.Duration) (func(ctx context.Context) error, error) {
	var release func(ctx context.Context) error
	err := r.executor.WithRedisResilience(ctx, "acquire_match_lock", func(ctx context.Context) error {
		var err error
		release, err = r.repo.AcquireMatchLock(ctx, telegramIDs, ttl)
		return err
	})
	if errors.Is(err, apperrors.ErrLockNotAcquired) {
		server.RecordCacheOperation("acquire_match_lock", "busy")
		return nil, err
	}
	r.record("acquire_match_lock", err)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		err := r.executor.WithRedisResilience(ctx, "release_match_lock", release)
		r.record("release_match_lock", err)
		return err
	}, nil
}

func (r *ResilientCacheRepository) record(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	server.RecordCacheOperation(operation, result)
}
