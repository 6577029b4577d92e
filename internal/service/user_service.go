package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"

	"go.uber.org/zap"
)

// maxDisplayNameLength ограничение длины отображаемого имени в символах
const maxDisplayNameLength = 64

// ProfileServiceInterface определяет интерфейс для сервиса профилей
type ProfileServiceInterface interface {
	EnsureUser(ctx context.Context, tgUser models.TelegramUser) (*models.User, error)
	LoadUser(ctx context.Context, telegramID string) (*models.User, error)
	SaveProfile(ctx context.Context, telegramID string, update models.ProfileUpdate) (*models.User, error)
	SavePreferences(ctx context.Context, telegramID string, preferences map[string]models.Preference) (*models.User, error)
	IncreasePoints(ctx context.Context, telegramID string, amount int64) (*models.User, error)
}

// UserRepositoryInterface описывает хранилище пользователей и пар
type UserRepositoryInterface interface {
	GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	EnsureUser(ctx context.Context, user *models.User) (*models.User, bool, error)
	UpdateUser(ctx context.Context, telegramID string, mutate func(user *models.User) error) (*models.User, error)
	IncrementPoints(ctx context.Context, telegramID string, delta int64) (*models.User, error)
	ListUnmatchedCandidates(ctx context.Context, excludeID string) ([]models.User, error)
	CommitMatch(ctx context.Context, requesterID, candidateID, sport string) (*models.Match, error)
	GetMatchByUser(ctx context.Context, telegramID string) (*models.Match, error)
}

// CacheRepositoryInterface описывает кэш профилей и блокировки подбора
type CacheRepositoryInterface interface {
	SetUser(ctx context.Context, user *models.User) error
	SetUserIfAbsent(ctx context.Context, user *models.User) (bool, error)
	GetUser(ctx context.Context, telegramID string) (*models.User, error)
	DeleteUser(ctx context.Context, telegramIDs ...string) error
	AcquireMatchLock(ctx context.Context, telegramIDs []string, ttl time.Duration) (func(ctx context.Context) error, error)
}

// NoopCache используется, когда Redis недоступен при старте
type NoopCache struct{}

func (NoopCache) SetUser(ctx context.Context, user *models.User) error { return nil }

func (NoopCache) SetUserIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	return false, nil
}

func (NoopCache) GetUser(ctx context.Context, telegramID string) (*models.User, error) {
	return nil, apperrors.ErrCacheMiss
}

func (NoopCache) DeleteUser(ctx context.Context, telegramIDs ...string) error { return nil }

func (NoopCache) AcquireMatchLock(ctx context.Context, telegramIDs []string, ttl time.Duration) (func(ctx context.Context) error, error) {
	return func(ctx context.Context) error { return nil }, nil
}

// ProfileService читает и изменяет профили пользователей
type ProfileService struct {
	userRepo  UserRepositoryInterface
	cacheRepo CacheRepositoryInterface
	sports    map[string]struct{}
	logger    *zap.Logger
}

// NewProfileService создает новый экземпляр ProfileService.
// Пустой sports разрешает любые непустые названия видов спорта.
func NewProfileService(userRepo UserRepositoryInterface, cacheRepo CacheRepositoryInterface, sports []string, logger *zap.Logger) *ProfileService {
	if cacheRepo == nil {
		cacheRepo = NoopCache{}
	}

	catalog := make(map[string]struct{}, len(sports))
	for _, sport := range sports {
		catalog[sport] = struct{}{}
	}

	return &ProfileService{
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
		sports:    catalog,
		logger:    logger,
	}
}

// EnsureUser находит пользователя по данным Telegram или создает запись с незаполненным профилем
func (s *ProfileService) EnsureUser(ctx context.Context, tgUser models.TelegramUser) (*models.User, error) {
	telegramID := tgUser.ID.String()
	if telegramID == "" {
		return nil, apperrors.Validation("id", "telegram user id is required")
	}

	displayName := strings.TrimSpace(tgUser.FirstName)
	if displayName == "" {
		displayName = tgUser.Username
	}

	user, created, err := s.userRepo.EnsureUser(ctx, models.NewUser(telegramID, tgUser.Username, displayName))
	if err != nil {
		s.logger.Error("Failed to ensure user", zap.String("telegram_id", telegramID), zap.Error(err))
		return nil, err
	}

	if created {
		s.logger.Info("User created", zap.String("telegram_id", telegramID))
	}
	return user, nil
}

// LoadUser возвращает пользователя, сначала пробуя кэш
func (s *ProfileService) LoadUser(ctx context.Context, telegramID string) (*models.User, error) {
	if telegramID == "" {
		return nil, apperrors.Validation("telegramId", "telegram id is required")
	}

	if user, err := s.cacheRepo.GetUser(ctx, telegramID); err == nil {
		s.logger.Debug("User retrieved from cache", zap.String("telegram_id", telegramID))
		return user, nil
	}

	user, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error("Failed to load user", zap.String("telegram_id", telegramID), zap.Error(err))
		}
		return nil, err
	}

	// Запись могла устареть, пока шло чтение: свежая, положенная записью, не перетирается
	_, _ = s.cacheRepo.SetUserIfAbsent(ctx, user)
	return user, nil
}

// SaveProfile проверяет и сохраняет профиль. При ошибке валидации запись не меняется.
func (s *ProfileService) SaveProfile(ctx context.Context, telegramID string, update models.ProfileUpdate) (*models.User, error) {
	if telegramID == "" {
		return nil, apperrors.Validation("telegramId", "telegram id is required")
	}

	update, err := s.validateProfile(update)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateUser(ctx, telegramID, func(user *models.User) error {
		applyProfile(user, update)
		return nil
	})
	if err != nil {
		s.logWriteError("Failed to save profile", telegramID, err)
		return nil, err
	}

	refreshCache(ctx, s.cacheRepo, user)
	s.logger.Info("Profile saved", zap.String("telegram_id", telegramID), zap.Int("sports", len(user.Sports)))
	return user, nil
}

// SavePreferences проверяет и целиком заменяет предпочтения по видам спорта.
// Любая некорректная запись отклоняет весь вызов.
func (s *ProfileService) SavePreferences(ctx context.Context, telegramID string, preferences map[string]models.Preference) (*models.User, error) {
	if telegramID == "" {
		return nil, apperrors.Validation("telegramId", "telegram id is required")
	}
	if preferences == nil {
		return nil, apperrors.Validation("matchPreferences", "match preferences are required")
	}

	normalized := make(map[string]models.Preference, len(preferences))
	for name, pref := range preferences {
		sport := strings.TrimSpace(name)
		if sport == "" {
			return nil, apperrors.Validation("matchPreferences", "sport name cannot be empty")
		}
		if _, dup := normalized[sport]; dup {
			return nil, apperrors.Validation("matchPreferences."+sport, "sport %q is listed more than once", sport)
		}
		pref = pref.Normalized()
		if err := pref.Validate(sport); err != nil {
			return nil, err
		}
		normalized[sport] = pref
	}

	user, err := s.userRepo.UpdateUser(ctx, telegramID, func(user *models.User) error {
		for sport := range normalized {
			if _, ok := user.Sports[sport]; !ok {
				return apperrors.Validation("matchPreferences."+sport,
					"add %s to your sports before setting preferences for it", sport)
			}
		}
		user.MatchPreferences = normalized
		return nil
	})
	if err != nil {
		s.logWriteError("Failed to save match preferences", telegramID, err)
		return nil, err
	}

	refreshCache(ctx, s.cacheRepo, user)
	s.logger.Info("Match preferences saved",
		zap.String("telegram_id", telegramID),
		zap.Int("sports", len(normalized)))
	return user, nil
}

// IncreasePoints начисляет очки. Нулевое значение означает одно очко.
func (s *ProfileService) IncreasePoints(ctx context.Context, telegramID string, amount int64) (*models.User, error) {
	if telegramID == "" {
		return nil, apperrors.Validation("telegramId", "telegram id is required")
	}
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return nil, apperrors.Validation("amount", "amount must be positive")
	}

	user, err := s.userRepo.IncrementPoints(ctx, telegramID, amount)
	if err != nil {
		s.logWriteError("Failed to increase points", telegramID, err)
		return nil, err
	}

	refreshCache(ctx, s.cacheRepo, user)
	return user, nil
}

// validateProfile проверяет поля профиля и возвращает нормализованную копию
func (s *ProfileService) validateProfile(update models.ProfileUpdate) (models.ProfileUpdate, error) {
	if !update.Gender.Valid() {
		return update, apperrors.Validation("gender", "gender must be Male or Female")
	}
	if update.Age < models.MinProfileAge || update.Age > models.MaxProfileAge {
		return update, apperrors.Validation("age", "age must be between %d and %d", models.MinProfileAge, models.MaxProfileAge)
	}

	update.DisplayName = strings.TrimSpace(update.DisplayName)
	if utf8.RuneCountInString(update.DisplayName) > maxDisplayNameLength {
		return update, apperrors.Validation("displayName", "display name cannot be longer than %d characters", maxDisplayNameLength)
	}

	if update.Sports != nil {
		sports := make(map[string]models.SkillLevel, len(update.Sports))
		for name, level := range update.Sports {
			name = strings.TrimSpace(name)
			if name == "" {
				return update, apperrors.Validation("sports", "sport name cannot be empty")
			}
			if _, dup := sports[name]; dup {
				return update, apperrors.Validation("sports."+name, "sport %q is listed more than once", name)
			}
			if len(s.sports) > 0 {
				if _, ok := s.sports[name]; !ok {
					return update, apperrors.Validation("sports."+name, "unknown sport %q", name)
				}
			}
			if !level.Valid() {
				return update, apperrors.Validation("sports."+name, "unknown skill level %q for %s", level, name)
			}
			sports[name] = level
		}
		update.Sports = sports
	}

	if update.HomeLocations != nil {
		for _, loc := range update.HomeLocations {
			if !loc.Valid() {
				return update, apperrors.Validation("homeLocations", "unknown location %q", loc)
			}
		}
		update.HomeLocations = models.NormalizeLocations(update.HomeLocations)
	}

	return update, nil
}

// applyProfile переносит проверенные поля в запись. Предпочтения для удаленных видов спорта удаляются.
func applyProfile(user *models.User, update models.ProfileUpdate) {
	if update.DisplayName != "" {
		user.DisplayName = update.DisplayName
	}
	user.Gender = update.Gender
	user.Age = update.Age

	if update.Sports != nil {
		user.Sports = update.Sports
		pruned := make(map[string]models.Preference, len(user.MatchPreferences))
		for sport, pref := range user.MatchPreferences {
			if _, ok := user.Sports[sport]; ok {
				pruned[sport] = pref
			}
		}
		user.MatchPreferences = pruned
	}
	if update.HomeLocations != nil {
		user.HomeLocations = update.HomeLocations
	}
}

// refreshCache перезаписывает профили только что зафиксированными записями.
// Если записать не удалось, ключ удаляется, чтобы не оставить старую версию.
func refreshCache(ctx context.Context, cache CacheRepositoryInterface, users ...*models.User) {
	for _, user := range users {
		if err := cache.SetUser(ctx, user); err != nil {
			_ = cache.DeleteUser(ctx, user.TelegramID)
		}
	}
}

func (s *ProfileService) logWriteError(msg, telegramID string, err error) {
	if apperrors.IsNotFound(err) || errors.Is(err, apperrors.ErrValidation) {
		s.logger.Debug(msg, zap.String("telegram_id", telegramID), zap.Error(err))
		return
	}
	s.logger.Error(msg, zap.String("telegram_id", telegramID), zap.Error(err))
}
