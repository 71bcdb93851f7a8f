package dialog

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/propflow/propflow/store"
)

// scarcitySeed derives a stable pseudo-random value per (property, day) so a
// user who asks twice on the same day sees the same numbers.
func scarcitySeed(propertyID int64, day time.Time, salt string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s:%s", propertyID, day.Format("2006-01-02"), salt)
	return h.Sum64()
}

// pick maps the seed into [lo, hi].
func pick(seed uint64, lo, hi int) int {
	return lo + int(seed%uint64(hi-lo+1))
}

// unitsLeft computes the scarcity count from the price tier.
func unitsLeft(p *store.Property, day time.Time) int {
	seed := scarcitySeed(p.ID, day, "units")
	switch {
	case p.Price > 5_000_000:
		return pick(seed, 1, 2)
	case p.Price > 2_000_000:
		return pick(seed, 2, 4)
	default:
		return pick(seed, 3, 6)
	}
}

// viewersToday computes the social-proof count.
func viewersToday(p *store.Property, day time.Time) int {
	seed := scarcitySeed(p.ID, day, "viewers")
	if p.IsFeatured {
		return pick(seed, 5, 12)
	}
	return pick(seed, 2, 6)
}

var scarcityLines = map[string]map[string]string{
	"units": {
		"en": "Only %d units left at this price.",
		"fa": "فقط %d واحد با این قیمت باقی مانده.",
		"ar": "تبقى %d وحدات فقط بهذا السعر.",
		"ru": "По этой цене осталось всего %d лотов.",
	},
	"viewers": {
		"en": "%d people viewed this today.",
		"fa": "%d نفر امروز این ملک را دیده‌اند.",
		"ar": "شاهده %d شخصاً اليوم.",
		"ru": "Сегодня этот объект посмотрели %d человек.",
	},
	"urgent": {
		"en": "Priced to close this week — viewings are filling up.",
		"fa": "قیمت برای فروش همین هفته است — بازدیدها در حال پر شدن‌اند.",
		"ar": "السعر للبيع هذا الأسبوع — المعاينات تمتلئ بسرعة.",
		"ru": "Цена действует до конца недели — просмотры расписаны.",
	},
}

func scarcityLine(key, lang string, args ...any) string {
	lines := scarcityLines[key]
	line, ok := lines[lang]
	if !ok {
		line = lines["en"]
	}
	if len(args) > 0 {
		return fmt.Sprintf(line, args...)
	}
	return line
}

// PropertyCard renders one matched property with its scarcity annotation.
// The matcher worker uses the same card as the in-dialogue presentation.
func PropertyCard(p *store.Property, lang string, day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏠 %s\n📍 %s", p.Title, p.Location)
	if p.Bedrooms > 0 {
		fmt.Fprintf(&b, " · %dBR", p.Bedrooms)
	}
	fmt.Fprintf(&b, "\n💰 %s AED", compactAmount(p.Price))
	if p.GoldenVisaEligible {
		b.WriteString(" · Golden Visa")
	}
	for _, line := range Annotate(p, lang, day) {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

// Annotate renders the scarcity/urgency lines for one property card.
// Deterministic per (property, day).
func Annotate(p *store.Property, lang string, day time.Time) []string {
	lines := []string{
		scarcityLine("units", lang, unitsLeft(p, day)),
		scarcityLine("viewers", lang, viewersToday(p, day)),
	}
	if p.IsUrgent {
		lines = append(lines, scarcityLine("urgent", lang))
	}
	return lines
}
