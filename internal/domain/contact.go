package domain

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizeContact formats a phone number as E.164 using region as the
// default country. Values that do not parse as a valid number are returned
// trimmed, since contact fields also hold free text such as "c/o guard".
func NormalizeContact(raw string, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = "PH"
	}
	num, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
