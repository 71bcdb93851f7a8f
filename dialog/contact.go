package dialog

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

// NormalizePhone strips whitespace and the separators ()-. and validates the
// result against ^\+?\d{10,15}$. Junk sequences (two or fewer unique digits,
// monotonic runs) are rejected. The normal form is +<digits>; normalizing
// twice yields the same string.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case ' ', '\t', '(', ')', '-', '.':
			continue
		}
		// Eastern numerals arrive from fa/ar keyboards.
		if d, ok := easternDigits[r]; ok {
			b.WriteRune(d)
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if !phonePattern.MatchString(cleaned) {
		return "", false
	}

	digits := strings.TrimPrefix(cleaned, "+")
	if uniqueDigits(digits) <= 2 || isMonotonicRun(digits) {
		return "", false
	}
	return "+" + digits, true
}

func uniqueDigits(digits string) int {
	var seen [10]bool
	count := 0
	for _, r := range digits {
		d := r - '0'
		if !seen[d] {
			seen[d] = true
			count++
		}
	}
	return count
}

// isMonotonicRun detects keyboard walks like 1234567890 or 9876543210,
// including wrap-around steps.
func isMonotonicRun(digits string) bool {
	if len(digits) < 3 {
		return false
	}
	ascending, descending := true, true
	for i := 1; i < len(digits); i++ {
		prev, cur := int(digits[i-1]-'0'), int(digits[i]-'0')
		if cur != (prev+1)%10 {
			ascending = false
		}
		if cur != (prev+9)%10 {
			descending = false
		}
	}
	return ascending || descending
}

// ParseContactText parses the free-text contact forms "Name - Phone" or a
// bare phone. Returns ok=false when no valid phone is present.
func ParseContactText(text string) (name, phone string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}

	if idx := strings.LastIndex(text, " - "); idx > 0 {
		if p, valid := NormalizePhone(text[idx+3:]); valid {
			return strings.TrimSpace(text[:idx]), p, true
		}
	}
	// "Name: phone" or "Name, phone" with the phone as the last field.
	fields := strings.Fields(text)
	if len(fields) > 1 {
		if p, valid := NormalizePhone(fields[len(fields)-1]); valid {
			name = strings.Trim(strings.TrimSpace(strings.Join(fields[:len(fields)-1], " ")), ",:-")
			return strings.TrimSpace(name), p, true
		}
	}
	if p, valid := NormalizePhone(text); valid {
		return "", p, true
	}
	return "", "", false
}
