package patient

import (
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone strips whitespace, parentheses and hyphens. It is idempotent.
func NormalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '(' || r == ')' || r == '-' {
			return -1
		}
		return r
	}, raw)
}

// FormatPhone returns raw in E.164 when it parses as a valid number for
// region, and its digits otherwise.
func FormatPhone(raw, region string) string {
	if num, err := phonenumbers.Parse(raw, region); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// CanonicalPhone is the stored and deduplicated form of a phone number.
func CanonicalPhone(raw, region string) string {
	return NormalizePhone(FormatPhone(raw, region))
}
