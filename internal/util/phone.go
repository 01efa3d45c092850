package util

import (
	"regexp"
	"strings"
)

var (
	e164Re     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	phoneNoise = regexp.MustCompile(`[^\d\+]+`)
)

// IsE164 reports whether s is a canonical E.164 number: "+", a non-zero
// country code digit, 2–15 digits in total.
func IsE164(s string) bool {
	return e164Re.MatchString(s)
}

// NormalizePhone strips separators from user input and turns an international
// "00" prefix into "+". It never invents a country code.
func NormalizePhone(raw string) string {
	s := phoneNoise.ReplaceAllString(strings.TrimSpace(raw), "")
	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}

	return s
}
