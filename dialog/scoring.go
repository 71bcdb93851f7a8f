package dialog

import (
	"time"

	"github.com/propflow/propflow/store"
)

// Score computes the 0-100 lead score:
// engagement (max 40) + qualification (max 40) + recency (max 20).
func Score(lead *store.Lead, now time.Time) int {
	return engagementScore(lead) + qualificationScore(lead) + recencyScore(lead, now)
}

func engagementScore(lead *store.Lead) int {
	score := 0
	score += capped(lead.QRScanCount*3, 15)
	score += capped(lead.CatalogViews*2, 10)
	score += capped(lead.MessagesCount, 10)
	if lead.VoiceMessagesCount > 0 {
		score += 5
	}
	return score
}

func qualificationScore(lead *store.Lead) int {
	score := 0
	if lead.HasPhone() {
		score += 10
	}
	if lead.HasBudget() {
		score += 10
	}
	if lead.TransactionType != "" {
		score += 5
	}
	if lead.PropertyType != "" {
		score += 5
	}
	if len(lead.PreferredLocations) > 0 {
		score += 5
	}
	if lead.PaymentMethod != "" {
		score += 5
	}
	return score
}

func recencyScore(lead *store.Lead, now time.Time) int {
	if lead.LastInteraction.IsZero() {
		return 0
	}
	age := now.Sub(lead.LastInteraction)
	switch {
	case age < time.Hour:
		return 20
	case age < 6*time.Hour:
		return 15
	case age < 24*time.Hour:
		return 10
	case age < 72*time.Hour:
		return 5
	default:
		return 0
	}
}

func capped(v, cap int) int {
	if v > cap {
		return cap
	}
	return v
}

// TemperatureFor buckets a score: 0-24 cold, 25-49 warm, 50-69 hot,
// 70-100 burning.
func TemperatureFor(score int) store.Temperature {
	switch {
	case score >= 70:
		return store.TemperatureBurning
	case score >= 50:
		return store.TemperatureHot
	case score >= 25:
		return store.TemperatureWarm
	default:
		return store.TemperatureCold
	}
}
