package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleID идентификатор Telegram, принимающий в JSON и строку, и число
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("telegram id must be a string or a number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

// String возвращает идентификатор строкой
func (id FlexibleID) String() string {
	return string(id)
}

// TelegramUser данные пользователя из рукопожатия Telegram WebApp (initDataUnsafe.user)
type TelegramUser struct {
	ID        FlexibleID `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name,omitempty"`
	Username  string     `json:"username,omitempty"`
}

// ProfileUpdate изменяемые поля профиля. Nil-поля не меняются.
type ProfileUpdate struct {
	DisplayName   string                `json:"displayName,omitempty"`
	Gender        Gender                `json:"gender"`
	Age           int                   `json:"age"`
	Sports        map[string]SkillLevel `json:"sports,omitempty"`
	HomeLocations []Location            `json:"homeLocations,omitempty"`
}

// SaveProfileRequest представляет запрос на сохранение профиля
type SaveProfileRequest struct {
	TelegramID FlexibleID `json:"telegramId"`
	ProfileUpdate
}

// SavePreferencesRequest представляет запрос на сохранение предпочтений по видам спорта
type SavePreferencesRequest struct {
	TelegramID       FlexibleID            `json:"telegramId"`
	MatchPreferences map[string]Preference `json:"matchPreferences"`
}

// IncreasePointsRequest представляет запрос на начисление очков
type IncreasePointsRequest struct {
	TelegramID FlexibleID `json:"telegramId"`
	Amount     int64      `json:"amount,omitempty"`
}

// MatchRequest представляет запрос на подбор пары
type MatchRequest struct {
	TelegramID FlexibleID `json:"telegramId"`
}

// Candidate подходящий кандидат и вид спорта, по которому совпали предпочтения
type Candidate struct {
	TelegramID  string `json:"telegramId"`
	DisplayName string `json:"displayName"`
	Sport       string `json:"sport"`
}

// SaveProfileResponse представляет ответ на сохранение профиля
type SaveProfileResponse struct {
	Success bool `json:"success"`
	*User
}

// MatchResponse представляет ответ с созданной парой
type MatchResponse struct {
	Match     *Match `json:"match"`
	PartnerID string `json:"partnerId,omitempty"`
}

// NewMatchResponse собирает ответ с точки зрения пользователя viewerID
func NewMatchResponse(match *Match, viewerID string) MatchResponse {
	resp := MatchResponse{Match: match}
	if match != nil && match.Involves(viewerID) {
		resp.PartnerID = match.Partner(viewerID)
	}
	return resp
}

// PointsResponse представляет ответ на начисление очков
type PointsResponse struct {
	Success bool  `json:"success"`
	Points  int64 `json:"points"`
}
