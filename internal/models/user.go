package models

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// User представляет профиль пользователя Mini App
type User struct {
	TelegramID       string                `gorm:"primaryKey;type:varchar(64)" json:"telegramId"`
	Username         string                `json:"username,omitempty"`
	DisplayName      string                `json:"displayName"`
	Gender           Gender                `gorm:"type:varchar(16)" json:"gender,omitempty"`
	Age              int                   `gorm:"default:0" json:"age,omitempty"`
	HomeLocations    []Location            `gorm:"serializer:json;type:jsonb" json:"homeLocations"`
	Sports           map[string]SkillLevel `gorm:"serializer:json;type:jsonb" json:"sports"`
	MatchPreferences map[string]Preference `gorm:"serializer:json;type:jsonb" json:"matchPreferences"`
	IsMatched        bool                  `gorm:"index;default:false" json:"isMatched"`
	Points           int64                 `gorm:"default:0" json:"points"`
	CreatedAt        time.Time             `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time             `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Match пара пользователей, созданная подбором
type Match struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserAID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"userA"`
	UserBID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"userB"`
	Sport     string    `gorm:"type:varchar(64)" json:"sport"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// Participants записи обоих участников в том виде, в каком их зафиксировала транзакция
	Participants []User `gorm:"-" json:"-"`
}

// TableName устанавливает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// TableName устанавливает имя таблицы для модели Match
func (Match) TableName() string {
	return "matches"
}

// NewUser создает запись с незаполненным профилем
func NewUser(telegramID, username, displayName string) *User {
	return &User{
		TelegramID:       telegramID,
		Username:         username,
		DisplayName:      displayName,
		HomeLocations:    []Location{},
		Sports:           map[string]SkillLevel{},
		MatchPreferences: map[string]Preference{},
	}
}

// ProfileComplete сообщает, заполнены ли пол и возраст
func (u *User) ProfileComplete() bool {
	return u.Gender.Valid() && u.Age >= MinProfileAge && u.Age <= MaxProfileAge
}

// SportNames возвращает виды спорта пользователя в алфавитном порядке
func (u *User) SportNames() []string {
	names := lo.Keys(u.Sports)
	sort.Strings(names)
	return names
}

// Involves проверяет, участвует ли пользователь в паре
func (m *Match) Involves(telegramID string) bool {
	return m.UserAID == telegramID || m.UserBID == telegramID
}

// Partner возвращает идентификатор второго участника пары
func (m *Match) Partner(telegramID string) string {
	if m.UserAID == telegramID {
		return m.UserBID
	}
	return m.UserAID
}
