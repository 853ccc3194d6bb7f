package models

import "fmt"

// Role is a family member's role. The set is closed; use the capability
// predicates below rather than comparing role strings at call sites.
type Role string

const (
	RoleAdminParent Role = "ADMIN_PARENT"
	RoleParent      Role = "PARENT"
	RoleChild       Role = "CHILD"
)

// ParseRole converts a stored role string into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdminParent, RoleParent, RoleChild:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsParent reports whether the role is either parent role
func (r Role) IsParent() bool {
	return r == RoleAdminParent || r == RoleParent
}

// CanReview reports whether the role may verify or decline completed tasks
func CanReview(r Role) bool { return r.IsParent() }

// CanCreateTasks reports whether the role may create, assign and edit tasks
func CanCreateTasks(r Role) bool { return r.IsParent() }

// CanManagePoints reports whether the role may add or deduct points manually
func CanManagePoints(r Role) bool { return r.IsParent() }

// CanManageFamily reports whether the role may regenerate the family code
// and remove members.
func CanManageFamily(r Role) bool { return r == RoleAdminParent }

// Actor is the resolved identity behind a request
type Actor struct {
	UserID   int64
	FamilyID int64
	Role     Role
}
