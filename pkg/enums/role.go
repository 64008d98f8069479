package enums

import (
	"fmt"
	"strings"
)

// Role is the platform-level role carried in access tokens.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleShipper Role = "shipper"
	// RoleSystem is never minted into tokens; background jobs act with it.
	RoleSystem Role = "system"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	return r.Mintable() || r == RoleSystem
}

// Mintable reports whether the role may appear in an access token.
func (r Role) Mintable() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleStaff, RoleShipper:
		return true
	}
	return false
}

// IsBackOffice reports whether the role belongs to store operators.
func (r Role) IsBackOffice() bool {
	return r == RoleAdmin || r == RoleStaff
}

// ParseRole accepts only mintable roles.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Mintable() {
		return "", fmt.Errorf("invalid role %q", value)
	}
	return role, nil
}
