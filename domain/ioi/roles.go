package ioi

import (
	"fmt"

	"circuitscope/domain/core"
)

// Role identifies one of the five IOI circuit head roles.
type Role string

const (
	RoleNameMover       Role = "name_mover"        // Moves the IO name to the final position
	RoleSInhibition     Role = "s_inhibition"      // Suppresses attention to the duplicated subject
	RoleDuplicateToken  Role = "duplicate_token"   // Attends from S2 back to S1
	RolePreviousToken   Role = "previous_token"    // Attends one position back
	RoleBackupNameMover Role = "backup_name_mover" // Name-mover behavior outside the primary set
)

// AllRoles returns the five roles in canonical order. Every role-keyed
// iteration in the engine walks this slice, never a map, so output
// ordering is fixed.
func AllRoles() []Role {
	return []Role{
		RoleNameMover,
		RoleSInhibition,
		RoleDuplicateToken,
		RolePreviousToken,
		RoleBackupNameMover,
	}
}

// DisplayName returns the human-readable role name used in DOT labels.
func (r Role) DisplayName() string {
	switch r {
	case RoleNameMover:
		return "Name Mover"
	case RoleSInhibition:
		return "S-Inhibition"
	case RoleDuplicateToken:
		return "Duplicate Token"
	case RolePreviousToken:
		return "Previous Token"
	case RoleBackupNameMover:
		return "Backup Name Mover"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the five roles.
func (r Role) Valid() bool {
	switch r {
	case RoleNameMover, RoleSInhibition, RoleDuplicateToken, RolePreviousToken, RoleBackupNameMover:
		return true
	}
	return false
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownRole, s)
	}
	return r, nil
}
