package smsgateway

import "strings"

// DefaultCountryCode is Kenya's dialling code.
const DefaultCountryCode = "254"

// NormalizePhone converts a phone number to +<country code><subscriber> form.
// A leading "+" is kept as is, a leading trunk "0" is replaced by the country code, a number already
// starting with the country code gains a "+", and anything else is treated as a bare domestic number.
func NormalizePhone(phone, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	countryCode = strings.TrimPrefix(countryCode, "+")

	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)

	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "0"):
		return "+" + countryCode + phone[1:]
	case strings.HasPrefix(phone, countryCode):
		return "+" + phone
	default:
		return "+" + countryCode + phone
	}
}

// MaskPhone hides the middle of a phone number for logging.
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return "***"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-3:]
}
