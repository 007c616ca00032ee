// Package phone turns user-typed phone numbers into E.164.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// HomeCountry is assumed whenever a number's country cannot be told.
const HomeCountry = "ID"

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize returns raw in E.164 form. hint is an ISO 3166 region used for
// numbers typed without a country code; it defaults to HomeCountry.
func Normalize(raw, hint string) (string, error) {
	hint = strings.ToUpper(strings.TrimSpace(hint))
	if hint == "" {
		hint = HomeCountry
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}

	if num, ok := parseValid(raw, hint); ok {
		return phonenumbers.Format(num, phonenumbers.E164), nil
	}

	digits := stripNonDigits(raw)
	if digits == "" {
		return "", ErrInvalidPhone
	}

	var candidate string
	switch {
	case strings.HasPrefix(digits, "62"):
		candidate = "+" + digits
	case strings.HasPrefix(digits, "0") && hint == "ID":
		candidate = "+62" + digits[1:]
	default:
		candidate = digits
	}

	num, ok := parseValid(candidate, hint)
	if !ok {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// DetectCountry returns the ISO region of an E.164 number, or HomeCountry
// when the library cannot attribute it.
func DetectCountry(e164 string) string {
	num, err := phonenumbers.Parse(e164, HomeCountry)
	if err != nil {
		return HomeCountry
	}
	region := phonenumbers.GetRegionCodeForNumber(num)
	if region == "" || region == "ZZ" {
		return HomeCountry
	}
	return region
}

func parseValid(raw, region string) (*phonenumbers.PhoneNumber, bool) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return nil, false
	}
	if !phonenumbers.IsValidNumber(num) {
		return nil, false
	}
	return num, true
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
