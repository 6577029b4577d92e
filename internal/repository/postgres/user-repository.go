package postgres

import (
	"context"
	"errors"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// profileColumns колонки, которые меняются при сохранении профиля и предпочтений.
// is_matched и points сюда не входят: их меняют только CommitMatch и IncrementPoints.
var profileColumns = []string{
	"username", "display_name", "gender", "age",
	"home_locations", "sports", "match_preferences", "updated_at",
}

// UserRepository представляет репозиторий для работы с пользователями и парами
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository создает новый экземпляр UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, translateNotFound(err, "user", telegramID)
	}
	return &user, nil
}

// EnsureUser создает пользователя, если его еще нет, и возвращает сохраненную запись.
// Второе значение сообщает, была ли запись создана этим вызовом.
func (r *UserRepository) EnsureUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	db := r.db.WithContext(ctx)

	// ON CONFLICT DO NOTHING: параллельные первые входы не падают на первичном ключе
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected == 1

	var stored models.User
	if err := db.Where("telegram_id = ?", user.TelegramID).First(&stored).Error; err != nil {
		return nil, false, translateNotFound(err, "user", user.TelegramID)
	}
	return &stored, created, nil
}

// UpdateUser блокирует строку пользователя, применяет mutate и сохраняет профильные колонки.
// Ошибка из mutate откатывает транзакцию без записи.
func (r *UserRepository) UpdateUser(ctx context.Context, telegramID string, mutate func(user *models.User) error) (*models.User, error) {
	var user models.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_id = ?", telegramID).
			First(&user).Error; err != nil {
			return translateNotFound(err, "user", telegramID)
		}

		if err := mutate(&user); err != nil {
			return err
		}

		return tx.Model(&user).Select(profileColumns).Updates(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementPoints атомарно увеличивает очки пользователя
func (r *UserRepository) IncrementPoints(ctx context.Context, telegramID string, delta int64) (*models.User, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		UpdateColumn("points", gorm.Expr("points + ?", delta))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.NotFound("user", telegramID)
	}

	return r.GetByTelegramID(ctx, telegramID)
}

// ListUnmatchedCandidates возвращает свободных пользователей, кроме указанного, по возрастанию telegram_id
func (r *UserRepository) ListUnmatchedCandidates(ctx context.Context, excludeID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("is_matched = ? AND telegram_id <> ?", false, excludeID).
		Order("telegram_id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CommitMatch атомарно помечает обоих пользователей занятыми и создает пару.
// Строки блокируются в порядке telegram_id, чтобы встречные транзакции не взаимоблокировались.
// Возвращает ErrAlreadyMatched, если запрашивающий уже в паре,
// и ErrConcurrencyConflict, если кандидата успел занять другой запрос.
func (r *UserRepository) CommitMatch(ctx context.Context, requesterID, candidateID, sport string) (*models.Match, error) {
	var match models.Match
	ids := []string{requesterID, candidateID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_id IN ?", ids).
			Order("telegram_id ASC").
			Find(&locked).Error; err != nil {
			return err
		}

		byID := make(map[string]models.User, len(locked))
		for _, u := range locked {
			byID[u.TelegramID] = u
		}

		requester, ok := byID[requesterID]
		if !ok {
			return apperrors.NotFound("user", requesterID)
		}
		if requester.IsMatched {
			return apperrors.ErrAlreadyMatched
		}
		if candidate, ok := byID[candidateID]; !ok || candidate.IsMatched {
			return apperrors.ErrConcurrencyConflict
		}

		result := tx.Model(&models.User{}).
			Where("telegram_id IN ? AND is_matched = ?", ids, false).
			Update("is_matched", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(len(ids)) {
			return apperrors.ErrConcurrencyConflict
		}

		match = models.Match{UserAID: requesterID, UserBID: candidateID, Sport: sport}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}

		for _, id := range ids {
			committed := byID[id]
			committed.IsMatched = true
			committed.UpdatedAt = match.CreatedAt
			match.Participants = append(match.Participants, committed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetMatchByUser возвращает пару, в которой состоит пользователь
func (r *UserRepository) GetMatchByUser(ctx context.Context, telegramID string) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", telegramID, telegramID).
		First(&match).Error
	if err != nil {
		return nil, translateNotFound(err, "match", telegramID)
	}
	return &match, nil
}

func translateNotFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return err
}
