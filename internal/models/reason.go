package models

// ReasonCode is the machine-readable outcome carried in every API response.
// Clients branch on the code, never on the message text.
type ReasonCode string

const (
	CodeOK                   ReasonCode = "OK"
	CodeInvalidRequest       ReasonCode = "INVALID_REQUEST"
	CodeValidationFailed     ReasonCode = "VALIDATION_FAILED"
	CodeAccountExists        ReasonCode = "ACCOUNT_EXISTS"
	CodeAccountNotFound      ReasonCode = "ACCOUNT_NOT_FOUND"
	CodeInvalidCredentials   ReasonCode = "INVALID_CREDENTIALS"
	CodeOTPInvalid           ReasonCode = "OTP_INVALID"
	CodeOTPExpired           ReasonCode = "OTP_EXPIRED"
	CodeOTPAttemptsExceeded  ReasonCode = "OTP_ATTEMPTS_EXCEEDED"
	CodeResendTooSoon        ReasonCode = "RESEND_TOO_SOON"
	CodeUnauthorized         ReasonCode = "UNAUTHORIZED"
	CodeForbidden            ReasonCode = "FORBIDDEN"
	CodeAlreadyAuthenticated ReasonCode = "ALREADY_AUTHENTICATED"
	CodeRateLimited          ReasonCode = "RATE_LIMITED"
	CodeNotFound             ReasonCode = "NOT_FOUND"
	CodeInternal             ReasonCode = "INTERNAL"
)

// Response is the envelope shared by every JSON endpoint.
type Response struct {
	Success  bool       `json:"success"`
	Code     ReasonCode `json:"code"`
	Message  string     `json:"message,omitempty"`
	// Redirect is set by guards: where the client should navigate instead.
	Redirect string     `json:"redirect,omitempty"`
}
