package models

import "strings"

// Role identifies which portal a principal belongs to. The string values are
// the wire literals shared with the frontend.
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleRetailer    Role = "retailer"
	RoleDeliveryBoy Role = "deliveryBoy"
	RoleAdmin       Role = "admin"
)

// AllRoles lists every role in a stable order.
var AllRoles = []Role{RoleCustomer, RoleRetailer, RoleDeliveryBoy, RoleAdmin}

// ParseRole accepts the wire literal, case-insensitively.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range AllRoles {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return "", false
}

// SelfService reports whether accounts of this role may sign up and sign in
// through the OTP channel. Admin accounts are provisioned directly.
func (r Role) SelfService() bool {
	return r == RoleCustomer || r == RoleRetailer || r == RoleDeliveryBoy
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated identity for one role.
type Principal struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}
