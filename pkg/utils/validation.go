package utils

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxNameLength     = 100
	OTPLength         = 4
)

var (
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	gstRegex   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)
	zipRegex   = regexp.MustCompile(`^[0-9]{5,6}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return &ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: "Name must be at most 100 characters"}
	}
	return nil
}

// ValidatePassword requires 8-72 characters with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 8 characters"}
	}
	if len(password) > MaxPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at most 72 characters"}
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return &ValidationError{Field: "password", Message: "Password must contain a letter and a number"}
	}
	return nil
}

// ValidatePasswordPair checks a password and its confirmation.
func ValidatePasswordPair(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return ValidatePassword(password)
}

func ValidatePhone(phone string) error {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if !phoneRegex.MatchString(phone) {
		return &ValidationError{Field: "phone", Message: "Please enter a valid phone number"}
	}
	return nil
}

// ValidateOTP requires exactly OTPLength ASCII digits.
func ValidateOTP(code string) error {
	if len(code) != OTPLength {
		return &ValidationError{Field: "otp", Message: "Please enter the complete 4-digit code"}
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return &ValidationError{Field: "otp", Message: "Code must contain digits only"}
		}
	}
	return nil
}

func ValidateGSTNumber(gst string) error {
	if !gstRegex.MatchString(strings.ToUpper(strings.TrimSpace(gst))) {
		return &ValidationError{Field: "gstNumber", Message: "Please enter a valid GST number"}
	}
	return nil
}

func ValidateZipCode(zip string) error {
	if !zipRegex.MatchString(strings.TrimSpace(zip)) {
		return &ValidationError{Field: "zipCode", Message: "Please enter a valid PIN code"}
	}
	return nil
}
