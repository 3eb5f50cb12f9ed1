// Package validation holds format validators for Ghana national identifiers.
package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var ghanaCardRe = regexp.MustCompile(`^GHA-\d{9}-\d$`)

// ValidGhanaCard reports whether the input is a well-formed Ghana Card number
// (GHA-XXXXXXXXX-X) with a correct Luhn check digit. Input is normalized
// first, so "gha123456789 0" style variants are accepted.
func ValidGhanaCard(card string) bool {
	if card == "" {
		return false
	}
	normalized := NormalizeGhanaCard(card)
	if !ghanaCardRe.MatchString(normalized) {
		return false
	}
	return ghanaCardChecksum(normalized)
}

// NormalizeGhanaCard uppercases and re-hyphenates a Ghana Card number.
// A bare 10-digit value is assumed to be missing the GHA prefix.
func NormalizeGhanaCard(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	var cleaned strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			cleaned.WriteRune(r)
		}
	}
	c := cleaned.String()
	if len(c) == 13 && strings.HasPrefix(c, "GHA") {
		return c[:3] + "-" + c[3:12] + "-" + c[12:]
	}
	if len(c) == 10 && isAllDigits(c) {
		return "GHA-" + c[:9] + "-" + c[9:]
	}
	return s
}

func ghanaCardChecksum(card string) bool {
	var digits []int
	for _, r := range card {
		if unicode.IsDigit(r) {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		d := digits[i]
		if i%2 == 0 {
			d *= 2
		}
		if d > 9 {
			d -= 9
		}
		sum += d
	}
	return (10-(sum%10))%10 == digits[9]
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
