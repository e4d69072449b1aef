package models

import "strings"

// Role is the portal authorization level carried on a Session.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// ParseRole normalizes the role strings different deployments send back.
// Anything that is not recognizably an administrator is a member.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator", "superadmin", "super_admin", "committee", "official":
		return RoleAdmin
	default:
		return RoleMember
	}
}

// IsAdmin reports whether the role may author broadcasts and log attendance.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
