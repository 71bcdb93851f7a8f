package dialog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/propflow/propflow/store"
)

// Slot names collected during qualification.
const (
	SlotGoal         = "goal"
	SlotCategory     = "property_category"
	SlotBudget       = "budget"
	SlotPropertyType = "property_type"
)

// Band is one budget range. Max == 0 means open-ended upward; the matcher
// treats it as unbounded.
type Band struct {
	Index int
	Min   int64 // AED
	Max   int64
}

// Budget bands are the single source of truth for both the button labels and
// the deterministic parser. Rent bands are annual.
var (
	buyBands = []Band{
		{0, 0, 150_000},
		{1, 150_000, 300_000},
		{2, 300_000, 500_000},
		{3, 500_000, 750_000},
		{4, 750_000, 0},
	}
	rentBands = []Band{
		{0, 0, 50_000},
		{1, 50_000, 100_000},
		{2, 100_000, 200_000},
		{3, 200_000, 500_000},
		{4, 500_000, 0},
	}
)

// BandsFor returns the band table for a transaction type.
func BandsFor(txn store.TransactionType) []Band {
	if txn == store.TransactionRent {
		return rentBands
	}
	return buyBands
}

// Label renders the canonical band label, e.g. "150K – 300K AED".
func (b Band) Label() string {
	if b.Max == 0 {
		return fmt.Sprintf("%s+ AED", compactAmount(b.Min))
	}
	if b.Min == 0 {
		return fmt.Sprintf("Up to %s AED", compactAmount(b.Max))
	}
	return fmt.Sprintf("%s – %s AED", compactAmount(b.Min), compactAmount(b.Max))
}

func compactAmount(v int64) string {
	switch {
	case v >= 1_000_000 && v%1_000_000 == 0:
		return strconv.FormatInt(v/1_000_000, 10) + "M"
	case v >= 1_000 && v%1_000 == 0:
		return strconv.FormatInt(v/1_000, 10) + "K"
	default:
		return strconv.FormatInt(v, 10)
	}
}

// BandForAmount returns the band containing the amount.
func BandForAmount(txn store.TransactionType, amount int64) (Band, bool) {
	if amount < 0 {
		return Band{}, false
	}
	for _, b := range BandsFor(txn) {
		if amount >= b.Min && (b.Max == 0 || amount < b.Max) {
			return b, true
		}
	}
	return Band{}, false
}

// BandByIndex returns the band with the given index.
func BandByIndex(txn store.TransactionType, index int) (Band, bool) {
	bands := BandsFor(txn)
	if index < 0 || index >= len(bands) {
		return Band{}, false
	}
	return bands[index], true
}

// ParseBandLabel is the left inverse of Label: given a canonical label it
// returns the corresponding band index.
func ParseBandLabel(txn store.TransactionType, label string) (Band, bool) {
	for _, b := range BandsFor(txn) {
		if b.Label() == label {
			return b, true
		}
	}
	return Band{}, false
}

// digit maps for Persian and Arabic-Indic numerals.
var easternDigits = map[rune]rune{
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
}

// Persian number words understood by the deterministic budget parser.
var persianNumberWords = map[string]int64{
	"یک": 1, "دو": 2, "سه": 3, "چهار": 4, "پنج": 5,
	"شش": 6, "هفت": 7, "هشت": 8, "نه": 9, "ده": 10,
	"بیست": 20, "پنجاه": 50, "صد": 100, "پانصد": 500,
}

var persianMultipliers = map[string]int64{
	"هزار":   1_000,
	"میلیون": 1_000_000,
}

// ParseAmount deterministically parses a money utterance into AED. Accepted
// forms: plain digits with separators ("300,000"), k/m suffixes ("2M",
// "300k"), Persian/Arabic-Indic numerals, and simple Persian number words
// ("دو میلیون"). Returns false when nothing parses; the caller then asks the
// oracle.
func ParseAmount(text string) (int64, bool) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return 0, false
	}

	// Normalize eastern numerals.
	var normalized strings.Builder
	for _, r := range text {
		if d, ok := easternDigits[r]; ok {
			normalized.WriteRune(d)
		} else {
			normalized.WriteRune(r)
		}
	}
	text = normalized.String()

	if v, ok := parsePersianWords(text); ok {
		return v, true
	}

	// Extract the first number token, with an optional k/m suffix.
	var numStr strings.Builder
	multiplier := int64(1)
	seenDigit := false
	for i, r := range text {
		switch {
		case r >= '0' && r <= '9':
			numStr.WriteRune(r)
			seenDigit = true
		case r == ',' || r == ' ' || r == '.':
			if !seenDigit {
				continue
			}
			if r == '.' {
				// decimal like "1.5m"
				rest := text[i:]
				if v, ok := parseDecimal(numStr.String(), rest); ok {
					return v, true
				}
				return 0, false
			}
		case seenDigit && (r == 'k' || r == 'm'):
			if r == 'k' {
				multiplier = 1_000
			} else {
				multiplier = 1_000_000
			}
			goto done
		case seenDigit:
			goto done
		}
	}
done:
	if !seenDigit {
		return 0, false
	}
	v, err := strconv.ParseInt(numStr.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

// parseDecimal handles "1.5m" style inputs; rest starts at the dot.
func parseDecimal(intPart, rest string) (int64, bool) {
	frac := strings.Builder{}
	multiplier := int64(0)
	for _, r := range rest[1:] {
		switch {
		case r >= '0' && r <= '9':
			frac.WriteRune(r)
		case r == 'k':
			multiplier = 1_000
		case r == 'm':
			multiplier = 1_000_000
		default:
		}
		if multiplier != 0 {
			break
		}
	}
	if multiplier == 0 || frac.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(intPart+"."+frac.String(), 64)
	if err != nil {
		return 0, false
	}
	return int64(f * float64(multiplier)), true
}

func parsePersianWords(text string) (int64, bool) {
	fields := strings.Fields(text)
	var value, pending int64
	matched := false
	for _, f := range fields {
		if n, ok := persianNumberWords[f]; ok {
			pending += n
			matched = true
			continue
		}
		if m, ok := persianMultipliers[f]; ok {
			if pending == 0 {
				pending = 1
			}
			value += pending * m
			pending = 0
			matched = true
			continue
		}
	}
	if !matched || value == 0 && pending == 0 {
		return 0, false
	}
	return value + pending, value+pending > 0
}

// nextSlot returns the most informative unfilled qualification slot, in
// dependency order: category before budget label rendering is independent,
// budget before property type because matching needs a price bound first.
func nextSlot(lead *store.Lead) string {
	switch {
	case lead.PropertyCategory == "":
		return SlotCategory
	case !lead.HasBudget():
		return SlotBudget
	case lead.PropertyType == "":
		return SlotPropertyType
	default:
		return ""
	}
}

// markSlot appends the slot name unless already present. filled_slots grows
// monotonically within a session.
func markSlot(filled []string, name string) []string {
	for _, s := range filled {
		if s == name {
			return filled
		}
	}
	return append(filled, name)
}
