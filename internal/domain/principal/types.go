// Package principal contains identity resolution for policy evaluation.
package principal

// Role is the platform role carried by a user profile document.
type Role string

const (
	// RoleNone means the principal has no resolved role. Anonymous
	// principals, principals without a profile document, and principals
	// whose role lookup failed all carry RoleNone.
	RoleNone Role = ""
	// RoleUser is a regular customer account.
	RoleUser Role = "user"
	// RoleAgent is a listing agent with back-office access.
	RoleAgent Role = "agent"
	// RoleAdmin is a platform administrator.
	RoleAdmin Role = "admin"
)

// ParseRole maps a profile document's role field to a Role.
// Unknown values map to RoleNone (fail-closed).
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAgent, RoleAdmin:
		return Role(s)
	}
	return RoleNone
}

// Principal is the resolved identity a request is evaluated on behalf of.
type Principal struct {
	// Subject is the authenticated subject id, empty for anonymous.
	Subject string
	// Role is the role resolved from the subject's profile document.
	Role Role
}

// Anonymous is the principal for unauthenticated requests.
var Anonymous = Principal{}

// Authenticated reports whether the principal carries a subject id.
func (p Principal) Authenticated() bool {
	return p.Subject != ""
}

// Elevated reports whether the principal holds an agent or admin role.
func (p Principal) Elevated() bool {
	return p.Role == RoleAgent || p.Role == RoleAdmin
}

// Admin reports whether the principal holds the admin role.
func (p Principal) Admin() bool {
	return p.Role == RoleAdmin
}
