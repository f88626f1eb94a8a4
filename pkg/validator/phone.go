package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number must be in international format, e.g. +94771234567")

	// ErrInvalidLength indicates phone number length is out of range
	ErrInvalidLength = errors.New("phone number must have 8 to 15 digits")
)

// e164Regex matches a leading + followed by digits, first digit nonzero
var e164Regex = regexp.MustCompile(`^\+[1-9]\d+$`)

// PhoneValidator validates traveler contact numbers. Bookings come from
// travelers worldwide, so numbers are required in international E.164 form.
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates an international phone number.
// Accepts format: +94771234567 or +94 77 123-4567
// Returns sanitized phone number (+ and digits only) and error if invalid.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !e164Regex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	digits := len(sanitized) - 1
	if digits < 8 || digits > 15 {
		return "", ErrInvalidLength
	}

	return sanitized, nil
}

// Sanitize removes common separators, keeping the leading + and digits
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	phone = strings.ReplaceAll(phone, ".", "")
	return phone
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
