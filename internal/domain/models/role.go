// internal/domain/models/role.go
package models

import "strings"

// Role is one of the two workflows an account can hold.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// AllRoles lists the valid roles in their canonical order.
var AllRoles = []Role{RoleStudent, RoleTutor}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is student or tutor.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleTutor
}

// ParseRole trims and lowercases s and reports whether it names a valid role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// HomePath is the profile page a guard sends an account to when it lacks
// the role a page requires.
func (r Role) HomePath() string {
	if r == RoleTutor {
		return "/tutor/profile"
	}
	return "/student/profile"
}

// ContainsRole reports whether roles holds r.
func ContainsRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}

// UnionRoles returns the distinct non-empty roles of all lists, keeping
// first-seen order.
func UnionRoles(lists ...[]Role) []Role {
	out := make([]Role, 0, 2)
	for _, list := range lists {
		for _, r := range list {
			if r == "" || ContainsRole(out, r) {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}
