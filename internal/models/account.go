package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a stored login for one role. The same email may hold an account
// per role.
type Account struct {
	ID         uuid.UUID `json:"id"`
	Role       Role      `json:"role"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Internal only - never returned in JSON
	PasswordHash string `json:"-"`
}

// Principal returns the session identity for the account.
func (a *Account) Principal() Principal {
	return Principal{Email: a.Email, Name: a.Name, Role: a.Role}
}
