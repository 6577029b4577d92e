package postgres

import (
	"context"
	"errors"
	"time"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/resilience"
	"SportMatchService/pkg/server"

	"go.uber.org/zap"
)

// Executor выполняет операцию с хранилищем через circuit breaker
type Executor interface {
	WithDatabaseResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error
}

// ResilientUserRepository добавляет circuit breaker, таймауты и метрики к репозиторию пользователей
type ResilientUserRepository struct {
	repo     *UserRepository
	executor Executor
	logger   *zap.Logger
}

// NewResilientUserRepository создает новый экземпляр отказоустойчивого репозитория
func NewResilientUserRepository(repo *UserRepository, executor Executor, logger *zap.Logger) *ResilientUserRepository {
	return &ResilientUserRepository{
		repo:     repo,
		executor: executor,
		logger:   logger,
	}
}

// run выполняет операцию и записывает ее длительность
func (r *ResilientUserRepository) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	startTime := time.Now()
	err := r.executor.WithDatabaseResilience(ctx, operation, fn)
	server.RecordDBOperation(operation, time.Since(startTime), err)
	if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
		r.logger.Warn("PostgreSQL circuit is open", zap.String("operation", operation))
	}
	return err
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *ResilientUserRepository) GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	var user *models.User
	err := r.run(ctx, "get_user", func(ctx context.Context) error {
		var err error
		user, err = r.repo.GetByTelegramID(ctx, telegramID)
		return err
	})
	return user, err
}

// EnsureUser находит или создает пользователя
func (r *ResilientUserRepository) EnsureUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	var (
		stored  *models.User
		created bool
	)
	err := r.run(ctx, "ensure_user", func(ctx context.Context) error {
		var err error
		stored, created, err = r.repo.EnsureUser(ctx, user)
		return err
	})
	return stored, created, err
}

// UpdateUser изменяет профиль пользователя в транзакции
func (r *ResilientUserRepository) UpdateUser(ctx context.Context, telegramID string, mutate func(user *models.User) error) (*models.User, error) {
	var user *models.User
	err := r.run(ctx, "update_user", func(ctx context.Context) error {
		var err error
		user, err = r.repo.UpdateUser(ctx, telegramID, mutate)
		return err
	})
	return user, err
}

// IncrementPoints увеличивает очки пользователя
func (r *ResilientUserRepository) IncrementPoints(ctx context.Context, telegramID string, delta int64) (*models.User, error) {
	var user *models.User
	err := r.run(ctx, "increment_points", func(ctx context.Context) error {
		var err error
		user, err = r.repo.IncrementPoints(ctx, telegramID, delta)
		return err
	})
	return user, err
}

// ListUnmatchedCandidates возвращает пул свободных кандидатов
func (r *ResilientUserRepository) ListUnmatchedCandidates(ctx context.Context, excludeID string) ([]models.User, error) {
	var users []models.User
	err := r.run(ctx, "list_candidates", func(ctx context.Context) error {
		var err error
		users, err = r.repo.ListUnmatchedCandidates(ctx, excludeID)
		return err
	})
	return users, err
}

// CommitMatch фиксирует пару
func (r *ResilientUserRepository) CommitMatch(ctx context.Context, requesterID, candidateID, sport string) (*models.Match, error) {
	var match *models.Match
	err := r.run(ctx, "commit_match", func(ctx context.Context) error {
		var err error
		match, err = r.repo.CommitMatch(ctx, requesterID, candidateID, sport)
		return err
	})
	return match, err
}

// GetMatchByUser возвращает пару пользователя
func (r *ResilientUserRepository) GetMatchByUser(ctx context.Context, telegramID string) (*models.Match, error) {
	var match *models.Match
	err := r.run(ctx, "get_match", func(ctx context.Context) error {
		var err error
		match, err = r.repo.GetMatchByUser(ctx, telegramID)
		return err
	})
	return match, err
}
