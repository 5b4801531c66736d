package messaging

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a handle cannot be turned into an E.164-like number.
var ErrInvalidPhone = errors.New("invalid phone number")

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// NormalizePhone returns "+<country code><subscriber digits>".
//
//	"0912 345 678"   -> "+251912345678"
//	"912345678"      -> "+251912345678"
//	"251912345678"   -> "+251912345678"
//	"00251912345678" -> "+251912345678"
//	"+1 (555) 010-9999" -> "+15550109999"
//
// Normalizing an already normalized number returns it unchanged.
func NormalizePhone(raw, countryCode string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	international := strings.HasPrefix(trimmed, "+")
	digits := onlyDigits(trimmed)
	cc := onlyDigits(countryCode)

	switch {
	case digits == "":
		return "", ErrInvalidPhone
	case international:
		// already carries its own country code
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case cc != "" && strings.HasPrefix(digits, cc):
	case strings.HasPrefix(digits, "0"):
		digits = cc + strings.TrimLeft(digits, "0")
	default:
		digits = cc + digits
	}

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits || digits[0] == '0' {
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}

// Digits strips everything but digits; wa.me links and bridge chat ids want bare digits.
func Digits(phone string) string {
	return onlyDigits(phone)
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
