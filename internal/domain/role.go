package domain

import "fmt"

// Role is the kind of account a caller signs in as. Sessions are keyed by
// role and id, so the same numeric id may exist once per role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleRider    Role = "rider"
)

// ValidRoles returns every accepted role.
func ValidRoles() []Role {
	return []Role{RoleCustomer, RoleAdmin, RoleRider}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleRider:
		return true
	}
	return false
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
