package form

import "strings"

// DefaultCountryCode prefixes phone numbers sent to the backend.
const DefaultCountryCode = "+91"

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneDigits keeps the first ten digits of raw input.
func PhoneDigits(raw string) string {
	d := digitsOnly(raw)
	if len(d) > 10 {
		d = d[:10]
	}
	return d
}

// FormatPhone renders ten digits as "<code> XXXXX XXXXX".
func FormatPhone(countryCode, raw string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	d := PhoneDigits(raw)
	if len(d) <= 5 {
		return countryCode + " " + d
	}
	return countryCode + " " + d[:5] + " " + d[5:]
}

// DisplayPhone turns a stored "+91 XXXXX XXXXX" back into the "XXXXX XXXXX"
// the form field shows. The last ten digits are the subscriber number.
func DisplayPhone(stored string) string {
	d := digitsOnly(stored)
	if len(d) > 10 {
		d = d[len(d)-10:]
	}
	if len(d) <= 5 {
		return d
	}
	return d[:5] + " " + d[5:]
}
