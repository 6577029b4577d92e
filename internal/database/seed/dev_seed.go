package seed

import (
	"context"
	"fmt"
	"os"

	"SportMatchService/internal/models"

	"go.uber.org/zap"
)

// userStore операции хранилища, нужные для заполнения тестовыми данными
type userStore interface {
	EnsureUser(ctx context.Context, user *models.User) (*models.User, bool, error)
	UpdateUser(ctx context.Context, telegramID string, mutate func(user *models.User) error) (*models.User, error)
}

// DevEnvironmentSeeder обрабатывает заполнение тестовыми данными среды разработки
type DevEnvironmentSeeder struct {
	store  userStore
	logger *zap.Logger
}

// NewDevEnvironmentSeeder создает новый объект для заполнения тестовыми данными
func NewDevEnvironmentSeeder(store userStore, logger *zap.Logger) *DevEnvironmentSeeder {
	return &DevEnvironmentSeeder{
		store:  store,
		logger: logger,
	}
}

// demoPlayer описание тестового игрока
type demoPlayer struct {
	id       string
	name     string
	gender   models.Gender
	age      int
	location models.Location
	sports   map[string]models.SkillLevel
	prefs    map[string]models.Preference
}

func demoPlayers() []demoPlayer {
	tennisOpen := models.Preference{
		AgeRange:            models.AgeRange{Min: 20, Max: 45},
		GenderPreference:    models.PreferEither,
		SkillLevels:         []models.SkillLevel{models.SkillIntermediate, models.SkillPro},
		LocationPreferences: []models.Location{models.LocationNorth, models.LocationCentral},
	}
	badmintonWomen := models.Preference{
		AgeRange:            models.AgeRange{Min: 18, Max: 35},
		GenderPreference:    models.PreferFemale,
		SkillLevels:         []models.SkillLevel{models.SkillNewbie, models.SkillBeginner},
		LocationPreferences: []models.Location{models.LocationSouth},
	}

	return []demoPlayer{
		{
			id: "1000001", name: "Alex", gender: models.GenderMale, age: 30, location: models.LocationNorth,
			sports: map[string]models.SkillLevel{"Tennis": models.SkillIntermediate},
			prefs:  map[string]models.Preference{"Tennis": tennisOpen},
		},
		{
			id: "1000002", name: "Maria", gender: models.GenderFemale, age: 28, location: models.LocationCentral,
			sports: map[string]models.SkillLevel{"Tennis": models.SkillPro, "Badminton": models.SkillBeginner},
			prefs:  map[string]models.Preference{"Tennis": tennisOpen, "Badminton": badmintonWomen},
		},
		{
			id: "1000003", name: "Olga", gender: models.GenderFemale, age: 24, location: models.LocationSouth,
			sports: map[string]models.SkillLevel{"Badminton": models.SkillNewbie},
			prefs:  map[string]models.Preference{"Badminton": badmintonWomen},
		},
		{
			id: "1000004", name: "Ivan", gender: models.GenderMale, age: 52, location: models.LocationWest,
			sports: map[string]models.SkillLevel{"Table Tennis": models.SkillPro},
		},
	}
}

// SeedDemoUsers создает тестовых игроков, если мы находимся в режиме разработки.
// Существующие записи не перезаписываются.
func (s *DevEnvironmentSeeder) SeedDemoUsers(ctx context.Context) error {
	if os.Getenv("APP_ENV") != "development" {
		s.logger.Debug("Not in development mode, skipping demo users")
		return nil
	}

	created := 0
	for _, p := range demoPlayers() {
		_, isNew, err := s.store.EnsureUser(ctx, models.NewUser(p.id, "demo_"+p.id, p.name))
		if err != nil {
			return fmt.Errorf("seed user %s: %w", p.id, err)
		}
		if !isNew {
			continue
		}

		player := p
		_, err = s.store.UpdateUser(ctx, p.id, func(user *models.User) error {
			user.Gender = player.gender
			user.Age = player.age
			user.HomeLocations = []models.Location{player.location}
			user.Sports = player.sports
			if player.prefs != nil {
				user.MatchPreferences = player.prefs
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("seed profile %s: %w", p.id, err)
		}
		created++
	}

	s.logger.Info("Demo users seeded", zap.Int("created", created))
	return nil
}

// SeedAllDevData заполняет все данные для разработки
func (s *DevEnvironmentSeeder) SeedAllDevData(ctx context.Context) error {
	return s.SeedDemoUsers(ctx)
}
