// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultCountryCode is used when callers do not configure one.
const DefaultCountryCode = "55"

// NormalizeDigits returns the number as international digits without a
// leading '+', suitable for chat gateways. Numbers without a country code
// get defaultCC prepended. Applying it to its own output is a no-op.
func NormalizeDigits(input, defaultCC string) string {
	trimmed := strings.TrimSpace(input)
	digits := onlyDigits(trimmed)
	if digits == "" {
		return ""
	}
	if defaultCC == "" {
		defaultCC = DefaultCountryCode
	}

	if strings.HasPrefix(trimmed, "+") {
		return digits
	}
	if strings.HasPrefix(digits, "00") && len(digits) > 4 {
		return strings.TrimPrefix(digits, "00")
	}

	if strings.HasPrefix(digits, defaultCC) && isValidInternational(digits) {
		return digits
	}

	if region := regionFor(defaultCC); region != "" {
		if number, err := phonenumbers.Parse(digits, region); err == nil && phonenumbers.IsValidNumberForRegion(number, region) {
			return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
		}
	}

	if isValidInternational(digits) {
		return digits
	}

	if strings.HasPrefix(digits, defaultCC) {
		return digits
	}
	return defaultCC + digits
}

// NormalizeE164 formats a phone number to E.164 using defaultCC for numbers
// without a country code. Empty input yields an empty string.
func NormalizeE164(input, defaultCC string) string {
	digits := NormalizeDigits(input, defaultCC)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// Equal reports whether two numbers normalize to the same digits.
func Equal(a, b, defaultCC string) bool {
	na := NormalizeDigits(a, defaultCC)
	return na != "" && na == NormalizeDigits(b, defaultCC)
}

func isValidInternational(digits string) bool {
	number, err := phonenumbers.Parse("+"+digits, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}

func regionFor(cc string) string {
	code := 0
	for _, r := range cc {
		if r < '0' || r > '9' {
			return ""
		}
		code = code*10 + int(r-'0')
	}
	region := phonenumbers.GetRegionCodeForCountryCode(code)
	if region == "ZZ" {
		return ""
	}
	return region
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
