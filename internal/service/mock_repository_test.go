package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"
)

// MockUserRepository хранилище в памяти с той же семантикой фиксации пары, что и PostgreSQL
type MockUserRepository struct {
	mu      sync.Mutex
	users   map[string]*models.User
	matches []*models.Match
	writes  int

	// beforeCommit вызывается перед проверкой в CommitMatch (для имитации гонок)
	beforeCommit func(requesterID, candidateID string)
	// afterGet вызывается после чтения в GetByTelegramID, до возврата записи
	afterGet func(telegramID string)
}

func NewMockUserRepository(users ...*models.User) *MockUserRepository {
	m := &MockUserRepository{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.TelegramID] = cloneUser(u)
	}
	return m
}

// cloneUser копирует запись вместе с картами, как это делает чтение из базы
func cloneUser(u *models.User) *models.User {
	data, err := json.Marshal(u)
	if err != nil {
		panic(err)
	}
	var out models.User
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

func (m *MockUserRepository) user(id string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (m *MockUserRepository) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockUserRepository) allMatches() []*models.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Match(nil), m.matches...)
}

func (m *MockUserRepository) GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	if u := m.user(telegramID); u != nil {
		if m.afterGet != nil {
			m.afterGet(telegramID)
		}
		return u, nil
	}
	return nil, apperrors.NotFound("user", telegramID)
}

func (m *MockUserRepository) EnsureUser(ctx context.Context, user *models.User) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.TelegramID]; ok {
		return cloneUser(existing), false, nil
	}
	m.users[user.TelegramID] = cloneUser(user)
	m.writes++
	return cloneUser(user), true, nil
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, telegramID string, mutate func(user *models.User) error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[telegramID]
	if !ok {
		return nil, apperrors.NotFound("user", telegramID)
	}

	working := cloneUser(existing)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.IsMatched = existing.IsMatched
	working.Points = existing.Points
	m.users[telegramID] = working
	m.writes++
	return cloneUser(working), nil
}

func (m *MockUserRepository) IncrementPoints(ctx context.Context, telegramID string, delta int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[telegramID]
	if !ok {
		return nil, apperrors.NotFound("user", telegramID)
	}
	existing.Points += delta
	m.writes++
	return cloneUser(existing), nil
}

func (m *MockUserRepository) ListUnmatchedCandidates(ctx context.Context, excludeID string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool := make([]models.User, 0, len(m.users))
	for id, u := range m.users {
		if id != excludeID && !u.IsMatched {
			pool = append(pool, *cloneUser(u))
		}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].TelegramID < pool[j].TelegramID })
	return pool, nil
}

func (m *MockUserRepository) CommitMatch(ctx context.Context, requesterID, candidateID, sport string) (*models.Match, error) {
	if m.beforeCommit != nil {
		m.beforeCommit(requesterID, candidateID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	requester, ok := m.users[requesterID]
	if !ok {
		return nil, apperrors.NotFound("user", requesterID)
	}
	if requester.IsMatched {
		return nil, apperrors.ErrAlreadyMatched
	}
	candidate, ok := m.users[candidateID]
	if !ok || candidate.IsMatched {
		return nil, apperrors.ErrConcurrencyConflict
	}

	requester.IsMatched = true
	candidate.IsMatched = true
	match := &models.Match{
		ID:        uint(len(m.matches) + 1),
		UserAID:   requesterID,
		UserBID:   candidateID,
		Sport:     sport,
		CreatedAt: time.Now(),
	}
	m.matches = append(m.matches, match)
	m.writes++

	returned := *match
	returned.Participants = []models.User{*cloneUser(requester), *cloneUser(candidate)}
	return &returned, nil
}

func (m *MockUserRepository) GetMatchByUser(ctx context.Context, telegramID string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, match := range m.matches {
		if match.Involves(telegramID) {
			copied := *match
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("match", telegramID)
}

// MockCacheRepository кэш в памяти
type MockCacheRepository struct {
	mu      sync.Mutex
	users   map[string]*models.User
	locks   map[string]bool
	lockErr error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		users: make(map[string]*models.User),
		locks: make(map[string]bool),
	}
}

func (c *MockCacheRepository) SetUser(ctx context.Context, user *models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.TelegramID] = cloneUser(user)
	return nil
}

func (c *MockCacheRepository) SetUserIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[user.TelegramID]; ok {
		return false, nil
	}
	c.users[user.TelegramID] = cloneUser(user)
	return true, nil
}

func (c *MockCacheRepository) cached(telegramID string) *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.users[telegramID]; ok {
		return cloneUser(u)
	}
	return nil
}

func (c *MockCacheRepository) GetUser(ctx context.Context, telegramID string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.users[telegramID]; ok {
		return cloneUser(u), nil
	}
	return nil, apperrors.ErrCacheMiss
}

func (c *MockCacheRepository) DeleteUser(ctx context.Context, telegramIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range telegramIDs {
		delete(c.users, id)
	}
	return nil
}

func (c *MockCacheRepository) AcquireMatchLock(ctx context.Context, telegramIDs []string, ttl time.Duration) (func(ctx context.Context) error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lockErr != nil {
		return nil, c.lockErr
	}
	for _, id := range telegramIDs {
		if c.locks[id] {
			return nil, apperrors.ErrLockNotAcquired
		}
	}
	for _, id := range telegramIDs {
		c.locks[id] = true
	}
	return func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, id := range telegramIDs {
			delete(c.locks, id)
		}
		return nil
	}, nil
}

// recordingPublisher запоминает опубликованные пары
type recordingPublisher struct {
	mu      sync.Mutex
	matches []*models.Match
	err     error
}

func (p *recordingPublisher) PublishMatchCreated(ctx context.Context, match *models.Match) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matches = append(p.matches, match)
	return p.err
}
