package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/store"
)

func TestScarcityDeterministicPerDay(t *testing.T) {
	p := &store.Property{ID: 42, Price: 3_000_000}
	day := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	later := day.Add(5 * time.Hour) // same calendar day

	assert.Equal(t, unitsLeft(p, day), unitsLeft(p, later))
	assert.Equal(t, viewersToday(p, day), viewersToday(p, later))

	// A different day may roll new numbers; a different property must not
	// share the same stream.
	other := &store.Property{ID: 43, Price: 3_000_000}
	_ = unitsLeft(other, day) // must not panic; value independent of p
}

func TestUnitsLeftTiers(t *testing.T) {
	day := time.Now()
	for id := int64(1); id <= 50; id++ {
		lux := unitsLeft(&store.Property{ID: id, Price: 6_000_000}, day)
		assert.GreaterOrEqual(t, lux, 1)
		assert.LessOrEqual(t, lux, 2)

		mid := unitsLeft(&store.Property{ID: id, Price: 2_500_000}, day)
		assert.GreaterOrEqual(t, mid, 2)
		assert.LessOrEqual(t, mid, 4)

		low := unitsLeft(&store.Property{ID: id, Price: 800_000}, day)
		assert.GreaterOrEqual(t, low, 3)
		assert.LessOrEqual(t, low, 6)
	}
}

func TestViewersTodayRanges(t *testing.T) {
	day := time.Now()
	for id := int64(1); id <= 50; id++ {
		featured := viewersToday(&store.Property{ID: id, IsFeatured: true}, day)
		assert.GreaterOrEqual(t, featured, 5)
		assert.LessOrEqual(t, featured, 12)

		plain := viewersToday(&store.Property{ID: id}, day)
		assert.GreaterOrEqual(t, plain, 2)
		assert.LessOrEqual(t, plain, 6)
	}
}

func TestAnnotateUrgentLine(t *testing.T) {
	day := time.Now()
	lines := Annotate(&store.Property{ID: 1, Price: 1_000_000}, "en", day)
	require.Len(t, lines, 2)

	lines = Annotate(&store.Property{ID: 1, Price: 1_000_000, IsUrgent: true}, "en", day)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "this week")
}
