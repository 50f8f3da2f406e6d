package models

import "strings"

// Role is the access level of a caller.
type Role string

const (
	RoleUser       Role = "User"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// ParseRole maps s case-insensitively onto a Role, defaulting to RoleUser.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "superadmin", "super_admin", "super-admin":
		return RoleSuperAdmin
	default:
		return RoleUser
	}
}

// Caller identifies who is invoking an access-gated operation. It is always passed
// explicitly; there is no process-wide current user.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanManage reports whether the caller may save, delete, or reconfigure data.
func (c Caller) CanManage() bool {
	return c.Role == RoleAdmin || c.Role == RoleSuperAdmin
}
