package domain

import (
	"fmt"
	"strings"
)

// Role is the caller's resolved role. The set is closed.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// ParseRole converts a raw role tag into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", NewDomainError(ErrCodeValidation, fmt.Sprintf("invalid role: %q", raw))
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// IsPrivileged reports whether r sees unpublished content.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin
}

// CanEditContent reports whether r may create or modify knowledge items.
func (r Role) CanEditContent() bool {
	return r == RoleAdmin || r == RoleInstructor
}
