package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tennisPlayer создает игрока, который ищет партнера своего уровня из North
func tennisPlayer(id string, gender models.Gender, age int, skill models.SkillLevel) *models.User {
	u := models.NewUser(id, "user"+id, "Player "+id)
	u.Gender = gender
	u.Age = age
	u.HomeLocations = []models.Location{models.LocationNorth}
	u.Sports["Tennis"] = skill
	u.MatchPreferences["Tennis"] = models.Preference{
		AgeRange:            models.AgeRange{Min: 25, Max: 40},
		GenderPreference:    models.PreferEither,
		SkillLevels:         []models.SkillLevel{models.SkillIntermediate, models.SkillPro},
		LocationPreferences: []models.Location{models.LocationNorth},
	}
	return u
}

func newMatchService(repo *MockUserRepository, cache *MockCacheRepository, publisher MatchEventPublisher) *MatchService {
	return NewMatchService(repo, cache, publisher, MatchOptions{MaxCommitAttempts: 3, LockTTL: time.Second}, zap.NewNop())
}

func TestFindMatch_TennisScenario(t *testing.T) {
	requester := tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate)
	candidate := tennisPlayer("200", models.GenderFemale, 28, models.SkillIntermediate)
	repo := NewMockUserRepository(requester, candidate)
	cache := NewMockCacheRepository()
	publisher := &recordingPublisher{}
	svc := newMatchService(repo, cache, publisher)

	match, err := svc.FindMatch(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "100", match.UserAID)
	assert.Equal(t, "200", match.UserBID)
	assert.Equal(t, "Tennis", match.Sport)

	assert.True(t, repo.user("100").IsMatched)
	assert.True(t, repo.user("200").IsMatched)
	for _, id := range []string{"100", "200"} {
		cached := cache.cached(id)
		require.NotNil(t, cached, "committed record must be cached for %s", id)
		assert.True(t, cached.IsMatched)
	}
	require.Len(t, publisher.matches, 1)
	assert.Empty(t, cache.locks, "locks must be released after commit")

	stored, err := svc.GetMatch(context.Background(), "200")
	require.NoError(t, err)
	assert.Equal(t, match.ID, stored.ID)
}

func TestFindMatch_SkillOutsidePreferences(t *testing.T) {
	requester := tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate)
	newbie := tennisPlayer("200", models.GenderFemale, 28, models.SkillNewbie)
	repo := NewMockUserRepository(requester, newbie)
	svc := newMatchService(repo, NewMockCacheRepository(), nil)

	_, err := svc.FindMatch(context.Background(), "100")
	assert.ErrorIs(t, err, apperrors.ErrNoMatchFound)
	assert.Zero(t, repo.writeCount())
}

func TestFindMatch_Errors(t *testing.T) {
	matched := tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate)
	matched.IsMatched = true
	incomplete := models.NewUser("300", "u300", "No profile")
	other := tennisPlayer("200", models.GenderFemale, 28, models.SkillIntermediate)

	repo := NewMockUserRepository(matched, incomplete, other)
	svc := newMatchService(repo, NewMockCacheRepository(), nil)
	ctx := context.Background()

	_, err := svc.FindMatch(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.FindMatch(ctx, "100")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyMatched)
	assert.Equal(t, "already_matched", apperrors.Kind(err))

	// Пользователь без пола и возраста не может получить пару
	_, err = svc.FindMatch(ctx, "300")
	assert.ErrorIs(t, err, apperrors.ErrNoMatchFound)

	_, err = svc.FindMatch(ctx, "")
	assert.True(t, apperrors.IsValidation(err))

	assert.Zero(t, repo.writeCount())
}

func TestFindMatch_LowestIDWins(t *testing.T) {
	requester := tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate)
	repo := NewMockUserRepository(
		requester,
		tennisPlayer("400", models.GenderFemale, 28, models.SkillPro),
		tennisPlayer("250", models.GenderFemale, 35, models.SkillIntermediate),
		tennisPlayer("300", models.GenderMale, 26, models.SkillPro),
	)
	svc := newMatchService(repo, NewMockCacheRepository(), nil)

	candidates, err := svc.PreviewCandidates(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "250", candidates[0].TelegramID)
	assert.Equal(t, "300", candidates[1].TelegramID)
	assert.Equal(t, "400", candidates[2].TelegramID)
	assert.Zero(t, repo.writeCount())

	match, err := svc.FindMatch(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "250", match.UserBID)
}

func TestFindMatch_LostRaceMovesToNextCandidate(t *testing.T) {
	repo := NewMockUserRepository(
		tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate),
		tennisPlayer("200", models.GenderFemale, 28, models.SkillIntermediate),
		tennisPlayer("300", models.GenderFemale, 29, models.SkillPro),
	)

	// Между отбором и фиксацией кандидата 200 забирает другой запрос
	var once sync.Once
	repo.beforeCommit = func(requesterID, candidateID string) {
		if candidateID == "200" {
			once.Do(func() {
				repo.mu.Lock()
				repo.users["200"].IsMatched = true
				repo.mu.Unlock()
			})
		}
	}

	svc := newMatchService(repo, NewMockCacheRepository(), nil)
	match, err := svc.FindMatch(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "300", match.UserBID)
}

func TestFindMatch_AllAttemptsLost(t *testing.T) {
	users := []*models.User{tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate)}
	for i := 1; i <= 5; i++ {
		users = append(users, tennisPlayer(fmt.Sprintf("%d", 200+i), models.GenderFemale, 28, models.SkillPro))
	}
	repo := NewMockUserRepository(users...)

	commits := 0
	repo.beforeCommit = func(requesterID, candidateID string) {
		commits++
		repo.mu.Lock()
		repo.users[candidateID].IsMatched = true
		repo.mu.Unlock()
	}

	svc := newMatchService(repo, NewMockCacheRepository(), nil)
	_, err := svc.FindMatch(context.Background(), "100")

	assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
	assert.Equal(t, 3, commits, "commit attempts are bounded")
	assert.False(t, repo.user("100").IsMatched)
	assert.Empty(t, repo.allMatches())
}

func TestFindMatch_LockBusyCountsAsLostRace(t *testing.T) {
	repo := NewMockUserRepository(
		tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate),
		tennisPlayer("200", models.GenderFemale, 28, models.SkillIntermediate),
		tennisPlayer("300", models.GenderFemale, 29, models.SkillPro),
	)
	cache := NewMockCacheRepository()
	cache.locks["200"] = true

	svc := newMatchService(repo, cache, nil)
	match, err := svc.FindMatch(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "300", match.UserBID)
	assert.False(t, repo.user("200").IsMatched)
}

func TestFindMatch_WorksWithoutRedis(t *testing.T) {
	repo := NewMockUserRepository(
		tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate),
		tennisPlayer("200", models.GenderFemale, 28, models.SkillIntermediate),
	)
	cache := NewMockCacheRepository()
	cache.lockErr = errors.New("redis: connection refused")
	publisher := &recordingPublisher{err: errors.New("broker down")}

	svc := newMatchService(repo, cache, publisher)
	match, err := svc.FindMatch(context.Background(), "100")
	require.NoError(t, err, "cache and broker failures must not fail the match")
	assert.Equal(t, "200", match.UserBID)
}

func TestFindMatch_ConcurrentRequestersSingleCandidate(t *testing.T) {
	const requesters = 20

	users := []*models.User{tennisPlayer("999", models.GenderFemale, 30, models.SkillPro)}
	for i := 0; i < requesters; i++ {
		users = append(users, tennisPlayer(fmt.Sprintf("1%02d", i), models.GenderMale, 30, models.SkillIntermediate))
	}
	// Запрашивающие не подходят друг другу: их предпочтения требуют уровень Pro
	for _, u := range users[1:] {
		pref := u.MatchPreferences["Tennis"]
		pref.SkillLevels = []models.SkillLevel{models.SkillPro}
		u.MatchPreferences["Tennis"] = pref
	}

	repo := NewMockUserRepository(users...)
	svc := newMatchService(repo, NewMockCacheRepository(), nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, u := range users[1:] {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.FindMatch(context.Background(), id)
			switch {
			case err == nil:
				mu.Lock()
				success++
				mu.Unlock()
			case errors.Is(err, apperrors.ErrNoMatchFound), errors.Is(err, apperrors.ErrConcurrencyConflict):
			default:
				t.Errorf("unexpected error for %s: %v", id, err)
			}
		}(u.TelegramID)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	matches := repo.allMatches()
	require.Len(t, matches, 1)
	assert.Equal(t, "999", matches[0].UserBID)

	// Каждый помеченный пользователь состоит ровно в одной паре
	matchedCount := 0
	for _, u := range users {
		if repo.user(u.TelegramID).IsMatched {
			matchedCount++
			_, err := svc.GetMatch(context.Background(), u.TelegramID)
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, 2, matchedCount)
}

func TestGetMatch_NotFound(t *testing.T) {
	svc := newMatchService(NewMockUserRepository(), NewMockCacheRepository(), nil)
	_, err := svc.GetMatch(context.Background(), "100")
	assert.True(t, apperrors.IsNotFound(err))
}

// pauseLoad останавливает первое чтение id из хранилища, пока не будет вызвана возвращенная функция
func pauseLoad(repo *MockUserRepository, id string) (reached <-chan struct{}, resume func()) {
	reachedCh := make(chan struct{})
	resumeCh := make(chan struct{})
	var once sync.Once
	repo.afterGet = func(telegramID string) {
		if telegramID != id {
			return
		}
		once.Do(func() {
			close(reachedCh)
			<-resumeCh
		})
	}
	return reachedCh, func() { close(resumeCh) }
}

func TestLoadUser_WriteDuringCacheMissKeepsFreshRecord(t *testing.T) {
	tests := []struct {
		name  string
		write func(ctx context.Context, profiles *ProfileService, matches *MatchService) error
		check func(t *testing.T, u *models.User)
	}{
		{
			name: "Match",
			write: func(ctx context.Context, _ *ProfileService, matches *MatchService) error {
				_, err := matches.FindMatch(ctx, "100")
				return err
			},
			check: func(t *testing.T, u *models.User) { assert.True(t, u.IsMatched) },
		},
		{
			name: "Points",
			write: func(ctx context.Context, profiles *ProfileService, _ *MatchService) error {
				_, err := profiles.IncreasePoints(ctx, "200", 5)
				return err
			},
			check: func(t *testing.T, u *models.User) { assert.Equal(t, int64(5), u.Points) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository(
				tennisPlayer("100", models.GenderMale, 30, models.SkillIntermediate),
				tennisPlayer("200", models.GenderFemale, 28, models.SkillIntermediate),
			)
			cache := NewMockCacheRepository()
			profiles := NewProfileService(repo, cache, nil, zap.NewNop())
			matches := newMatchService(repo, cache, nil)
			ctx := context.Background()

			reached, resume := pauseLoad(repo, "200")
			loaded := make(chan *models.User, 1)
			go func() {
				u, err := profiles.LoadUser(ctx, "200")
				assert.NoError(t, err)
				loaded <- u
			}()

			<-reached
			require.NoError(t, tt.write(ctx, profiles, matches))
			resume()

			// Чтение началось до записи и вернуло прежнюю версию, но в кэш ее не положило
			<-loaded
			cached := cache.cached("200")
			require.NotNil(t, cached)
			tt.check(t, cached)

			user, err := profiles.LoadUser(ctx, "200")
			require.NoError(t, err)
			tt.check(t, user)
		})
	}
}
