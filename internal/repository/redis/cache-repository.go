package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultUserTTL время жизни профиля в кэше, если не задано в конфигурации
const DefaultUserTTL = 30 * time.Minute

// releaseLockScript удаляет блокировку, только если она все еще принадлежит владельцу
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CacheRepository представляет репозиторий для работы с кэшем в Redis
type CacheRepository struct {
	client  *redis.Client
	userTTL time.Duration
}

// NewCacheRepository создает новый экземпляр CacheRepository
func NewCacheRepository(client *redis.Client, userTTL time.Duration) *CacheRepository {
	if userTTL <= 0 {
		userTTL = DefaultUserTTL
	}
	return &CacheRepository{
		client:  client,
		userTTL: userTTL,
	}
}

func userKey(telegramID string) string {
	return fmt.Sprintf("user:%s:profile", telegramID)
}

func matchLockKey(telegramID string) string {
	return fmt.Sprintf("match:lock:%s", telegramID)
}

// SetUser кэширует пользователя
func (r *CacheRepository) SetUser(ctx context.Context, user *models.User) error {
	userData, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, userKey(user.TelegramID), userData, r.userTTL).Err()
}

// SetUserIfAbsent кэширует пользователя, только если ключа еще нет.
// Используется при промахе: запись, прочитанная до чужой фиксации, не перетирает более свежую.
func (r *CacheRepository) SetUserIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	userData, err := json.Marshal(user)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, userKey(user.TelegramID), userData, r.userTTL).Result()
}

// GetUser получает пользователя из кэша. Промах возвращает redis.Nil.
func (r *CacheRepository) GetUser(ctx context.Context, telegramID string) (*models.User, error) {
	userData, err := r.client.Get(ctx, userKey(telegramID)).Bytes()
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(userData, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser удаляет профили из кэша
func (r *CacheRepository) DeleteUser(ctx context.Context, telegramIDs ...string) error {
	if len(telegramIDs) == 0 {
		return nil
	}
	keys := make([]string, len(telegramIDs))
	for i, id := range telegramIDs {
		keys[i] = userKey(id)
	}
	return r.client.Del(ctx, keys...).Err()
}

// AcquireMatchLock берет блокировки пользователей на время фиксации пары и возвращает функцию их снятия.
// Ключи берутся в порядке возрастания id; если хотя бы один занят,
// взятые снимаются и возвращается ErrLockNotAcquired.
func (r *CacheRepository) AcquireMatchLock(ctx context.Context, telegramIDs []string, ttl time.Duration) (func(ctx context.Context) error, error) {
	ids := append([]string(nil), telegramIDs...)
	sort.Strings(ids)

	token := uuid.New().String()
	acquired := make([]string, 0, len(ids))

	release := func(ctx context.Context) error {
		var firstErr error
		for _, key := range acquired {
			if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, id := range ids {
		key := matchLockKey(id)
		ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			_ = release(ctx)
			return nil, err
		}
		if !ok {
			_ = release(ctx)
			return nil, apperrors.ErrLockNotAcquired
		}
		acquired = append(acquired, key)
	}

	return release, nil
}
