package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrRoleNotAllowed       = errors.New("role cannot use this action")
	ErrOTPInvalid           = errors.New("invalid OTP")
	ErrOTPExpired           = errors.New("OTP expired or not requested")
	ErrOTPAttemptsExceeded  = errors.New("too many incorrect attempts")
	ErrResendTooSoon        = errors.New("please wait before requesting another code")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrUploadRejected       = errors.New("upload rejected")
)

// ResendTooSoonError carries the remaining cooldown. It matches ErrResendTooSoon.
type ResendTooSoonError struct {
	RetryAfter time.Duration
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("%s (%ds)", ErrResendTooSoon, int(e.RetryAfter.Round(time.Second).Seconds()))
}

func (e *ResendTooSoonError) Is(target error) bool {
	return target == ErrResendTooSoon
}
