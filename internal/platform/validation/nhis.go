package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var nhisRe = regexp.MustCompile(`^\d{10}$`)

// ValidNHIS reports whether the input is a 10-digit NHIS membership number.
// An empty value is valid: NHIS enrollment is optional.
func ValidNHIS(nhis string) bool {
	if strings.TrimSpace(nhis) == "" {
		return true
	}
	return nhisRe.MatchString(nhis)
}

// NormalizeNHIS strips everything but digits from an NHIS number. Returns the
// normalized value and whether it is a usable 10-digit key.
func NormalizeNHIS(input string) (string, bool) {
	var b strings.Builder
	for _, r := range input {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	n := b.String()
	return n, nhisRe.MatchString(n)
}
