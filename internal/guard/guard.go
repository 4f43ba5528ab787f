// Package guard decides whether a role-gated page or endpoint may be served.
// The same decisions back the storefront client and the API middleware.
package guard

import "github.com/AnshRaj112/freshcart-backend/internal/models"

// Decision is either Render or a redirect target.
type Decision struct {
	Render   bool
	Redirect string
}

// Paths are the two places a guard sends a visitor.
type Paths struct {
	Login string // signup/login form
	Home  string // the role's dashboard
}

var rolePaths = map[models.Role]Paths{
	models.RoleCustomer:    {Login: "/signup", Home: "/"},
	models.RoleRetailer:    {Login: "/retailer/login", Home: "/retailer/dashboard"},
	models.RoleDeliveryBoy: {Login: "/deliveryBoy/login", Home: "/deliveryBoy/dashboard"},
	models.RoleAdmin:       {Login: "/admin/login", Home: "/admin/dashboard"},
}

// PathsFor returns the redirect targets of role.
func PathsFor(role models.Role) Paths {
	if p, ok := rolePaths[role]; ok {
		return p
	}
	return Paths{Login: "/", Home: "/"}
}

// Present reports whether p counts as a signed-in principal of role. The
// customer portal also requires the principal's own role to match, so a
// principal of another role stored in the customer slot is ignored.
func Present(role models.Role, p *models.Principal) bool {
	if p == nil {
		return false
	}
	if role == models.RoleCustomer && p.Role != models.RoleCustomer {
		return false
	}
	return true
}

// Protected renders only for a present principal, otherwise redirects to login.
func Protected(role models.Role, p *models.Principal) Decision {
	if Present(role, p) {
		return Decision{Render: true}
	}
	return Decision{Redirect: PathsFor(role).Login}
}

// PublicOnly renders only when no principal is present, otherwise redirects
// to the role's dashboard.
func PublicOnly(role models.Role, p *models.Principal) Decision {
	if !Present(role, p) {
		return Decision{Render: true}
	}
	return Decision{Redirect: PathsFor(role).Home}
}
