package service

import (
	"context"
	"errors"
	"time"

	"SportMatchService/internal/matching"
	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"
	"SportMatchService/pkg/server"

	"go.uber.org/zap"
)

// MatchServiceInterface определяет интерфейс для сервиса подбора пары
type MatchServiceInterface interface {
	FindMatch(ctx context.Context, requesterID string) (*models.Match, error)
	PreviewCandidates(ctx context.Context, requesterID string) ([]models.Candidate, error)
	GetMatch(ctx context.Context, telegramID string) (*models.Match, error)
}

// MatchEventPublisher публикует событие о созданной паре
type MatchEventPublisher interface {
	PublishMatchCreated(ctx context.Context, match *models.Match) error
}

// MatchOptions настройки подбора пары
type MatchOptions struct {
	// MaxCommitAttempts сколько кандидатов пробуем зафиксировать за один запрос
	MaxCommitAttempts int
	// LockTTL время жизни блокировки пары в Redis
	LockTTL time.Duration
}

// MatchService подбирает пару пользователю и атомарно ее фиксирует
type MatchService struct {
	userRepo  UserRepositoryInterface
	cacheRepo CacheRepositoryInterface
	publisher MatchEventPublisher
	options   MatchOptions
	logger    *zap.Logger
}

// NewMatchService создает новый экземпляр MatchService
func NewMatchService(userRepo UserRepositoryInterface, cacheRepo CacheRepositoryInterface, publisher MatchEventPublisher, options MatchOptions, logger *zap.Logger) *MatchService {
	if cacheRepo == nil {
		cacheRepo = NoopCache{}
	}
	if options.MaxCommitAttempts <= 0 {
		options.MaxCommitAttempts = 1
	}
	if options.LockTTL <= 0 {
		options.LockTTL = 5 * time.Second
	}

	return &MatchService{
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
		publisher: publisher,
		options:   options,
		logger:    logger,
	}
}

// FindMatch подбирает пару для пользователя requesterID.
// Возможные ошибки: NotFound, AlreadyMatched, NoMatchFound, ConcurrencyConflict.
func (s *MatchService) FindMatch(ctx context.Context, requesterID string) (*models.Match, error) {
	match, err := s.findMatch(ctx, requesterID)

	outcome := "matched"
	if err != nil {
		outcome = apperrors.Kind(err)
	}
	server.RecordMatchOutcome(outcome)

	return match, err
}

func (s *MatchService) findMatch(ctx context.Context, requesterID string) (*models.Match, error) {
	requester, eligible, err := s.eligibleFor(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		s.logger.Info("No eligible candidates", zap.String("telegram_id", requesterID))
		return nil, apperrors.ErrNoMatchFound
	}

	// Кандидаты перебираются в детерминированном порядке; проигранная гонка переходит к следующему
	attempts := 0
	for _, candidate := range eligible {
		if attempts >= s.options.MaxCommitAttempts {
			break
		}
		attempts++

		match, err := s.commit(ctx, requester.TelegramID, candidate)
		if err == nil {
			s.afterCommit(ctx, match)
			return match, nil
		}
		if !errors.Is(err, apperrors.ErrConcurrencyConflict) && !errors.Is(err, apperrors.ErrLockNotAcquired) {
			return nil, err
		}

		server.RecordMatchCommitConflict()
		s.logger.Info("Candidate was taken by a concurrent request",
			zap.String("telegram_id", requesterID),
			zap.String("candidate_id", candidate.TelegramID),
			zap.Int("attempt", attempts))
	}

	return nil, &apperrors.AppError{
		Err:     apperrors.ErrConcurrencyConflict,
		Message: "all eligible candidates were taken by concurrent requests, please retry",
	}
}

// PreviewCandidates возвращает подходящих кандидатов в порядке, в котором их пробует FindMatch
func (s *MatchService) PreviewCandidates(ctx context.Context, requesterID string) ([]models.Candidate, error) {
	_, eligible, err := s.eligibleFor(ctx, requesterID)
	return eligible, err
}

// GetMatch возвращает пару, в которой состоит пользователь
func (s *MatchService) GetMatch(ctx context.Context, telegramID string) (*models.Match, error) {
	if telegramID == "" {
		return nil, apperrors.Validation("telegramId", "telegram id is required")
	}
	return s.userRepo.GetMatchByUser(ctx, telegramID)
}

// eligibleFor загружает запрашивающего из хранилища (не из кэша) и отбирает кандидатов
func (s *MatchService) eligibleFor(ctx context.Context, requesterID string) (*models.User, []models.Candidate, error) {
	if requesterID == "" {
		return nil, nil, apperrors.Validation("telegramId", "telegram id is required")
	}

	requester, err := s.userRepo.GetByTelegramID(ctx, requesterID)
	if err != nil {
		return nil, nil, err
	}
	if requester.IsMatched {
		return nil, nil, &apperrors.AppError{
			Err:     apperrors.ErrAlreadyMatched,
			Message: "you are already matched",
		}
	}

	pool, err := s.userRepo.ListUnmatchedCandidates(ctx, requesterID)
	if err != nil {
		s.logger.Error("Failed to load candidate pool", zap.String("telegram_id", requesterID), zap.Error(err))
		return nil, nil, err
	}

	return requester, matching.EligibleCandidates(requester, pool), nil
}

// commit фиксирует пару с одним кандидатом. Блокировка Redis необязательна:
// корректность обеспечивает условная транзакция в хранилище.
func (s *MatchService) commit(ctx context.Context, requesterID string, candidate models.Candidate) (*models.Match, error) {
	ids := []string{requesterID, candidate.TelegramID}

	release, err := s.cacheRepo.AcquireMatchLock(ctx, ids, s.options.LockTTL)
	switch {
	case errors.Is(err, apperrors.ErrLockNotAcquired):
		return nil, err
	case err != nil:
		s.logger.Warn("Match lock unavailable, relying on database transaction",
			zap.String("telegram_id", requesterID),
			zap.Error(err))
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release match lock", zap.Strings("telegram_ids", ids), zap.Error(err))
			}
		}()
	}

	return s.userRepo.CommitMatch(ctx, requesterID, candidate.TelegramID, candidate.Sport)
}

func (s *MatchService) afterCommit(ctx context.Context, match *models.Match) {
	if len(match.Participants) == 2 {
		refreshCache(ctx, s.cacheRepo, &match.Participants[0], &match.Participants[1])
	} else {
		_ = s.cacheRepo.DeleteUser(ctx, match.UserAID, match.UserBID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMatchCreated(ctx, match); err != nil {
			s.logger.Warn("Failed to publish match event", zap.Uint("match_id", match.ID), zap.Error(err))
		}
	}

	s.logger.Info("Match created",
		zap.Uint("match_id", match.ID),
		zap.String("user_a", match.UserAID),
		zap.String("user_b", match.UserBID),
		zap.String("sport", match.Sport))
}
