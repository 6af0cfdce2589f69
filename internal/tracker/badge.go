package tracker

import (
	"math"
	"time"

	"github.com/mmeshcher/parkspot/internal/model"
)

// Идентификаторы наград каталога.
const (
	BadgeFirstReport   = "first_report"
	BadgeReliable      = "reliable"
	BadgeSuperReporter = "super_reporter"
	BadgePerfect       = "perfect"
)

// BadgeDefinition описывает награду каталога и условие её получения.
type BadgeDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`

	qualifies func(r model.Reliability) bool
}

var catalogue = []BadgeDefinition{
	{
		ID:          BadgeFirstReport,
		Name:        "Primo Segnalatore",
		Description: "Hai fatto la tua prima segnalazione!",
		Icon:        "🚗",
		qualifies: func(r model.Reliability) bool {
			return r.TotalReports >= 1
		},
	},
	{
		ID:          BadgeReliable,
		Name:        "Segnalatore Affidabile",
		Description: "Hai un tasso di affidabilità dell'80% con almeno 10 segnalazioni",
		Icon:        "⭐",
		qualifies: func(r model.Reliability) bool {
			return r.TotalReports >= 10 && r.ReliabilityScore >= 80
		},
	},
	{
		ID:          BadgeSuperReporter,
		Name:        "Super Segnalatore",
		Description: "Hai fatto 50 segnalazioni!",
		Icon:        "🏆",
		qualifies: func(r model.Reliability) bool {
			return r.TotalReports >= 50
		},
	},
	{
		ID:          BadgePerfect,
		Name:        "Precisione Perfetta",
		Description: "Hai un tasso di affidabilità del 100% con almeno 20 segnalazioni",
		Icon:        "💎",
		qualifies: func(r model.Reliability) bool {
			return r.TotalReports >= 20 && r.ReliabilityScore == 100
		},
	},
}

// Catalogue возвращает копию каталога наград в фиксированном порядке.
func Catalogue() []BadgeDefinition {
	return append([]BadgeDefinition(nil), catalogue...)
}

// EvaluateBadges возвращает награды каталога, условия которых выполнены для снимка r.
func EvaluateBadges(r model.Reliability) []BadgeDefinition {
	var res []BadgeDefinition
	for _, def := range catalogue {
		if def.qualifies(r) {
			res = append(res, def)
		}
	}
	return res
}

// AwardBadges добавляет в r только новые награды и возвращает их.
// Дата получения уже выданной награды не меняется.
func AwardBadges(r *model.Reliability, now time.Time) []model.Badge {
	var awarded []model.Badge
	for _, def := range EvaluateBadges(*r) {
		if r.HasBadge(def.ID) {
			continue
		}
		b := model.Badge{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			UnlockedAt:  now,
		}
		r.Badges = append(r.Badges, b)
		awarded = append(awarded, b)
	}
	return awarded
}

// ReliabilityScore возвращает долю подтверждённых сообщений в процентах.
// Новые пользователи без сообщений получают 100.
func ReliabilityScore(totalReports, confirmedReports int) int {
	if totalReports <= 0 {
		return 100
	}
	return int(math.Round(float64(confirmedReports) / float64(totalReports) * 100))
}
