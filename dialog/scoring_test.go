package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/propflow/propflow/store"
)

func TestScoreComponents(t *testing.T) {
	now := time.Now()

	// Fresh empty lead: only recency counts.
	lead := &store.Lead{LastInteraction: now}
	assert.Equal(t, 20, Score(lead, now))

	// Engagement caps: 10 QR scans cap at 15, 10 catalog views at 10,
	// 50 messages at 10, voice adds a flat 5.
	lead = &store.Lead{
		QRScanCount:        10,
		CatalogViews:       10,
		MessagesCount:      50,
		VoiceMessagesCount: 2,
		LastInteraction:    now,
	}
	assert.Equal(t, 15+10+10+5+20, Score(lead, now))

	// Full qualification is worth 40.
	lead = &store.Lead{
		Phone:              "+971501234567",
		BudgetMin:          300_000,
		BudgetMax:          500_000,
		TransactionType:    store.TransactionBuy,
		PropertyType:       "apartment",
		PreferredLocations: []string{"Dubai Marina"},
		PaymentMethod:      "cash",
		LastInteraction:    now.Add(-80 * time.Hour), // stale, no recency
	}
	assert.Equal(t, 40, Score(lead, now))
}

func TestRecencyBuckets(t *testing.T) {
	now := time.Now()
	tests := []struct {
		age  time.Duration
		want int
	}{
		{30 * time.Minute, 20},
		{3 * time.Hour, 15},
		{12 * time.Hour, 10},
		{48 * time.Hour, 5},
		{100 * time.Hour, 0},
	}
	for _, tt := range tests {
		lead := &store.Lead{LastInteraction: now.Add(-tt.age)}
		assert.Equal(t, tt.want, recencyScore(lead, now), "age %s", tt.age)
	}
}

func TestTemperatureBuckets(t *testing.T) {
	assert.Equal(t, store.TemperatureCold, TemperatureFor(0))
	assert.Equal(t, store.TemperatureCold, TemperatureFor(24))
	assert.Equal(t, store.TemperatureWarm, TemperatureFor(25))
	assert.Equal(t, store.TemperatureWarm, TemperatureFor(49))
	assert.Equal(t, store.TemperatureHot, TemperatureFor(50))
	assert.Equal(t, store.TemperatureHot, TemperatureFor(69))
	assert.Equal(t, store.TemperatureBurning, TemperatureFor(70))
	assert.Equal(t, store.TemperatureBurning, TemperatureFor(100))
}
