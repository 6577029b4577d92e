package postgres

import (
	"context"
	"testing"

	"SportMatchService/internal/models"
	"SportMatchService/pkg/apperrors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var userColumns = []string{
	"telegram_id", "username", "display_name", "gender", "age",
	"home_locations", "sports", "match_preferences", "is_matched", "points",
}

// setupTestDB создает мок базы данных для тестов
func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func userRow(rows *sqlmock.Rows, id string, matched bool) *sqlmock.Rows {
	return rows.AddRow(id, "user"+id, "Player "+id, "Male", 30,
		`["North"]`,
		`{"Tennis":"Intermediate"}`,
		`{"Tennis":{"ageRange":[18,40],"genderPreference":"Either","skillLevels":["Intermediate"],"locationPreferences":["North"]}}`,
		matched, 0)
}

func TestGetByTelegramID(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE telegram_id = \$1`).
			WithArgs("100", 1).
			WillReturnRows(userRow(sqlmock.NewRows(userColumns), "100", false))

		user, err := repo.GetByTelegramID(context.Background(), "100")
		require.NoError(t, err)
		assert.Equal(t, "Player 100", user.DisplayName)
		assert.Equal(t, models.SkillIntermediate, user.Sports["Tennis"])
		assert.Equal(t, models.AgeRange{Min: 18, Max: 40}, user.MatchPreferences["Tennis"].AgeRange)
		assert.Equal(t, []models.Location{models.LocationNorth}, user.HomeLocations)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE telegram_id = \$1`).
			WithArgs("404", 1).
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := repo.GetByTelegramID(context.Background(), "404")
		assert.True(t, apperrors.IsNotFound(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnmatchedCandidates(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows(userColumns)
	userRow(rows, "200", false)
	userRow(rows, "300", false)
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE is_matched = \$1 AND telegram_id <> \$2 ORDER BY telegram_id ASC`).
		WithArgs(false, "100").
		WillReturnRows(rows)

	users, err := repo.ListUnmatchedCandidates(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "200", users[0].TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_MutationErrorRollsBack(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE telegram_id = \$1 .*FOR UPDATE`).
		WillReturnRows(userRow(sqlmock.NewRows(userColumns), "100", false))
	mock.ExpectRollback()

	_, err := repo.UpdateUser(context.Background(), "100", func(user *models.User) error {
		user.Age = 150
		return apperrors.Validation("age", "age must be between 1 and 100")
	})

	assert.True(t, apperrors.IsValidation(err))
	// UPDATE не выполнялся
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementPoints_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "points"=points \+ \$1 WHERE telegram_id = \$2`).
		WithArgs(int64(5), "404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := repo.IncrementPoints(context.Background(), "404", 5)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitMatch(t *testing.T) {
	lockQuery := `SELECT \* FROM "users" WHERE telegram_id IN \(\$1,\$2\) ORDER BY telegram_id ASC FOR UPDATE`

	t.Run("Success", func(t *testing.T) {
		db, mock := setupTestDB(t)
		repo := NewUserRepository(db)

		rows := sqlmock.NewRows(userColumns)
		userRow(rows, "100", false)
		userRow(rows, "200", false)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("100", "200").WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "users" SET "is_matched"=\$1,"updated_at"=\$2 WHERE telegram_id IN \(\$3,\$4\) AND is_matched = \$5`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery(`INSERT INTO "matches"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		match, err := repo.CommitMatch(context.Background(), "100", "200", "Tennis")
		require.NoError(t, err)
		assert.Equal(t, uint(7), match.ID)
		assert.Equal(t, "100", match.UserAID)
		assert.Equal(t, "200", match.UserBID)
		assert.Equal(t, "Tennis", match.Sport)

		require.Len(t, match.Participants, 2)
		for _, u := range match.Participants {
			assert.True(t, u.IsMatched, "participant %s", u.TelegramID)
			assert.Equal(t, "Player "+u.TelegramID, u.DisplayName)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CandidateTaken", func(t *testing.T) {
		db, mock := setupTestDB(t)
		repo := NewUserRepository(db)

		rows := sqlmock.NewRows(userColumns)
		userRow(rows, "100", false)
		userRow(rows, "200", true)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("100", "200").WillReturnRows(rows)
		mock.ExpectRollback()

		_, err := repo.CommitMatch(context.Background(), "100", "200", "Tennis")
		assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RequesterAlreadyMatched", func(t *testing.T) {
		db, mock := setupTestDB(t)
		repo := NewUserRepository(db)

		rows := sqlmock.NewRows(userColumns)
		userRow(rows, "100", true)
		userRow(rows, "200", false)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("100", "200").WillReturnRows(rows)
		mock.ExpectRollback()

		_, err := repo.CommitMatch(context.Background(), "100", "200", "Tennis")
		assert.ErrorIs(t, err, apperrors.ErrAlreadyMatched)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetMatchByUser_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "matches" WHERE user_a_id = \$1 OR user_b_id = \$2`).
		WithArgs("100", "100", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_a_id", "user_b_id", "sport"}))

	_, err := repo.GetMatchByUser(context.Background(), "100")
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
