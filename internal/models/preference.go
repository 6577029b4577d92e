package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"SportMatchService/pkg/apperrors"

	"github.com/samber/lo"
)

// Границы возраста
const (
	MinProfileAge    = 1
	MaxProfileAge    = 100
	MinPreferenceAge = 18
	MaxPreferenceAge = 85
)

// Gender пол пользователя
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Valid проверяет, что пол задан одним из допустимых значений
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// GenderPreference предпочтение по полу партнера
type GenderPreference string

const (
	PreferMale   GenderPreference = "Male"
	PreferFemale GenderPreference = "Female"
	PreferEither GenderPreference = "Either"

	// legacyPreferAnything старая метка, встречающаяся в сохраненных данных
	legacyPreferAnything = "Anything"
)

// ParseGenderPreference приводит метку к каноническому виду
func ParseGenderPreference(s string) GenderPreference {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, legacyPreferAnything) || strings.EqualFold(s, string(PreferEither)) {
		return PreferEither
	}
	return GenderPreference(s)
}

// UnmarshalText мигрирует устаревшую метку "Anything" в "Either"
func (p *GenderPreference) UnmarshalText(text []byte) error {
	*p = ParseGenderPreference(string(text))
	return nil
}

// Valid проверяет допустимость предпочтения
func (p GenderPreference) Valid() bool {
	switch p {
	case PreferMale, PreferFemale, PreferEither:
		return true
	}
	return false
}

// Accepts сообщает, подходит ли пол g под предпочтение
func (p GenderPreference) Accepts(g Gender) bool {
	if !g.Valid() {
		return false
	}
	return p == PreferEither || string(p) == string(g)
}

// SkillLevel уровень игры в конкретном виде спорта
type SkillLevel string

const (
	SkillNewbie       SkillLevel = "Newbie"
	SkillBeginner     SkillLevel = "Beginner"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillPro          SkillLevel = "Pro"
)

var skillRank = map[SkillLevel]int{
	SkillNewbie:       0,
	SkillBeginner:     1,
	SkillIntermediate: 2,
	SkillPro:          3,
}

// Valid проверяет допустимость уровня
func (s SkillLevel) Valid() bool {
	_, ok := skillRank[s]
	return ok
}

// Location район города
type Location string

const (
	LocationNorth   Location = "North"
	LocationSouth   Location = "South"
	LocationEast    Location = "East"
	LocationWest    Location = "West"
	LocationCentral Location = "Central"
)

// Valid проверяет допустимость района
func (l Location) Valid() bool {
	switch l {
	case LocationNorth, LocationSouth, LocationEast, LocationWest, LocationCentral:
		return true
	}
	return false
}

// AgeRange включительный диапазон возраста. В JSON хранится как пара [min, max].
type AgeRange struct {
	Min int
	Max int
}

// Contains проверяет попадание возраста в диапазон
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

func (r AgeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Min, r.Max})
}

func (r *AgeRange) UnmarshalJSON(data []byte) error {
	var pair []*int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("age range must be a [min, max] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("age range must have exactly 2 elements, got %d", len(pair))
	}

	// Незаполненные границы остаются нулевыми и отсекаются валидацией
	r.Min, r.Max = 0, 0
	if pair[0] != nil {
		r.Min = *pair[0]
	}
	if pair[1] != nil {
		r.Max = *pair[1]
	}
	return nil
}

// Preference настройки подбора партнера для одного вида спорта
type Preference struct {
	AgeRange            AgeRange         `json:"ageRange"`
	GenderPreference    GenderPreference `json:"genderPreference"`
	SkillLevels         []SkillLevel     `json:"skillLevels"`
	LocationPreferences []Location       `json:"locationPreferences"`
}

// Validate проверяет предпочтение для вида спорта sport
func (p Preference) Validate(sport string) error {
	field := "matchPreferences." + sport

	if p.AgeRange.Min < MinPreferenceAge || p.AgeRange.Min > MaxPreferenceAge {
		return apperrors.Validation(field+".ageRange",
			"minimum age for %s must be between %d and %d", sport, MinPreferenceAge, MaxPreferenceAge)
	}
	if p.AgeRange.Max < MinPreferenceAge || p.AgeRange.Max > MaxPreferenceAge {
		return apperrors.Validation(field+".ageRange",
			"maximum age for %s must be between %d and %d", sport, MinPreferenceAge, MaxPreferenceAge)
	}
	if p.AgeRange.Min > p.AgeRange.Max {
		return apperrors.Validation(field+".ageRange",
			"minimum age for %s cannot be greater than maximum age", sport)
	}
	if p.GenderPreference == "" {
		return apperrors.Validation(field+".genderPreference", "please select a gender preference for %s", sport)
	}
	if !p.GenderPreference.Valid() {
		return apperrors.Validation(field+".genderPreference", "unknown gender preference %q for %s", p.GenderPreference, sport)
	}
	if len(p.SkillLevels) == 0 {
		return apperrors.Validation(field+".skillLevels", "please select at least one skill level for %s", sport)
	}
	for _, level := range p.SkillLevels {
		if !level.Valid() {
			return apperrors.Validation(field+".skillLevels", "unknown skill level %q for %s", level, sport)
		}
	}
	if len(p.LocationPreferences) == 0 {
		return apperrors.Validation(field+".locationPreferences", "please select at least one preferred location for %s", sport)
	}
	for _, loc := range p.LocationPreferences {
		if !loc.Valid() {
			return apperrors.Validation(field+".locationPreferences", "unknown location %q for %s", loc, sport)
		}
	}

	return nil
}

// Normalized возвращает копию с каноническими метками и множествами без повторов
func (p Preference) Normalized() Preference {
	return Preference{
		AgeRange:            p.AgeRange,
		GenderPreference:    ParseGenderPreference(string(p.GenderPreference)),
		SkillLevels:         NormalizeSkills(p.SkillLevels),
		LocationPreferences: NormalizeLocations(p.LocationPreferences),
	}
}

// AcceptsSkill проверяет, входит ли уровень в допустимые
func (p Preference) AcceptsSkill(level SkillLevel) bool {
	return lo.Contains(p.SkillLevels, level)
}

// AcceptsAnyLocation проверяет пересечение районов с предпочтениями
func (p Preference) AcceptsAnyLocation(locations []Location) bool {
	return lo.Some(p.LocationPreferences, locations)
}

// NormalizeSkills убирает повторы и сортирует уровни от младшего к старшему
func NormalizeSkills(levels []SkillLevel) []SkillLevel {
	out := lo.Uniq(levels)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := skillRank[out[i]]
		rj, jok := skillRank[out[j]]
		if iok != jok {
			return iok
		}
		return ri < rj
	})
	return out
}

// NormalizeLocations убирает повторы и сортирует районы
func NormalizeLocations(locations []Location) []Location {
	out := lo.Uniq(locations)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
