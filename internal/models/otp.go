package models

import "time"

// OTPAction is the purpose a one-time code was issued for.
type OTPAction string

const (
	OTPActionSignup        OTPAction = "signup"
	OTPActionLogin         OTPAction = "login"
	OTPActionResetPassword OTPAction = "reset-password"
)

// Valid reports whether a is one of the known actions.
func (a OTPAction) Valid() bool {
	switch a {
	case OTPActionSignup, OTPActionLogin, OTPActionResetPassword:
		return true
	}
	return false
}

// OTPChallenge is an outstanding code keyed by (action, email).
type OTPChallenge struct {
	Email    string    `json:"email"`
	Action   OTPAction `json:"action"`
	Role     Role      `json:"role"`
	Code     string    `json:"-"` // Never expose the code in JSON responses
	Attempts int       `json:"attempts"`
	IssuedAt time.Time `json:"issued_at"`
}

// OTPIssued is published to the notifier whenever a code is generated.
type OTPIssued struct {
	Email     string    `json:"email"`
	Action    OTPAction `json:"action"`
	Role      Role      `json:"role"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
