// Package matching содержит предикат взаимной совместимости пользователей.
// Функции пакета чистые: они не обращаются к хранилищу и не меняют переданные записи.
package matching

import (
	"sort"

	"SportMatchService/internal/models"

	"github.com/samber/lo"
)

// SharedSports возвращает виды спорта, указанные у обоих пользователей, в алфавитном порядке
func SharedSports(a, b *models.User) []string {
	return lo.Filter(a.SportNames(), func(sport string, _ int) bool {
		_, ok := b.Sports[sport]
		return ok
	})
}

// Accepts проверяет одну сторону: удовлетворяет ли other предпочтениям owner для sport
func Accepts(owner, other *models.User, sport string) bool {
	pref, ok := owner.MatchPreferences[sport]
	if !ok {
		return false
	}

	skill, ok := other.Sports[sport]
	if !ok {
		return false
	}

	return pref.AgeRange.Contains(other.Age) &&
		pref.GenderPreference.Accepts(other.Gender) &&
		pref.AcceptsSkill(skill) &&
		pref.AcceptsAnyLocation(other.HomeLocations)
}

// Compatible проверяет взаимное совпадение по виду спорта: предпочтения обеих сторон должны выполняться
func Compatible(a, b *models.User, sport string) bool {
	if a.TelegramID == b.TelegramID {
		return false
	}
	if !a.ProfileComplete() || !b.ProfileComplete() {
		return false
	}
	return Accepts(a, b, sport) && Accepts(b, a, sport)
}

// MatchingSport возвращает первый общий вид спорта, по которому пара совместима
func MatchingSport(a, b *models.User) (string, bool) {
	for _, sport := range SharedSports(a, b) {
		if Compatible(a, b, sport) {
			return sport, true
		}
	}
	return "", false
}

// EligibleCandidates отбирает подходящих кандидатов из пула.
// Порядок результата детерминирован: по возрастанию идентификатора кандидата.
// Уже сопоставленные пользователи и сам requester пропускаются.
func EligibleCandidates(requester *models.User, pool []models.User) []models.Candidate {
	ordered := make([]*models.User, 0, len(pool))
	for i := range pool {
		ordered = append(ordered, &pool[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TelegramID < ordered[j].TelegramID
	})

	eligible := make([]models.Candidate, 0)
	for _, candidate := range ordered {
		if candidate.IsMatched || candidate.TelegramID == requester.TelegramID {
			continue
		}
		sport, ok := MatchingSport(requester, candidate)
		if !ok {
			continue
		}
		eligible = append(eligible, models.Candidate{
			TelegramID:  candidate.TelegramID,
			DisplayName: candidate.DisplayName,
			Sport:       sport,
		})
	}
	return eligible
}
